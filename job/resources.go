// Package job implements the task and job lifecycle (spec §4.7): each task
// wraps one chunk pool with per-job bookkeeping, registers under a task
// group sharing a minimum-resource envelope, and routes pool callbacks
// (Completed/Failed/Aborted/Lost) plus interruption/requeue continuations.
//
// Grounded on original_source/yt/server/scheduler/{merge_controller.cpp,
// operation_controller_detail.cpp,job_resources.{h,cpp}}.
package job

// Resources is a resource envelope a joblet needs or a task group
// guarantees, modeled on NProto::TNodeResources / job_resources.{h,cpp}'s
// free AddResources/SubtractResources/HasEnoughResources functions.
type Resources struct {
	UserSlots int
	CPU       float64
	Memory    int64
}

// Add returns the component-wise sum of r and o, grounded on
// job_resources.cpp's AddResources.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		UserSlots: r.UserSlots + o.UserSlots,
		CPU:       r.CPU + o.CPU,
		Memory:    r.Memory + o.Memory,
	}
}

// Sub returns the component-wise difference r - o, grounded on
// job_resources.cpp's SubtractResources.
func (r Resources) Sub(o Resources) Resources {
	return Resources{
		UserSlots: r.UserSlots - o.UserSlots,
		CPU:       r.CPU - o.CPU,
		Memory:    r.Memory - o.Memory,
	}
}

// HasEnoughResources reports whether usage+needed fits within limits,
// grounded on job_resources.cpp's HasEnoughResources.
func HasEnoughResources(usage, needed, limits Resources) bool {
	projected := usage.Add(needed)
	return projected.UserSlots <= limits.UserSlots &&
		projected.CPU <= limits.CPU &&
		projected.Memory <= limits.Memory
}

// HasSpareResources reports whether usage is still under limits at all,
// grounded on job_resources.cpp's HasSpareResources.
func HasSpareResources(usage, limits Resources) bool {
	return usage.UserSlots < limits.UserSlots &&
		usage.CPU < limits.CPU &&
		usage.Memory < limits.Memory
}

// Zero is the zero resource envelope.
var Zero = Resources{}
