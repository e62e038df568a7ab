// Package percentile implements the P-Square streaming quantile estimator
// (Jain & Chlamtac, 1985): O(1) per-observation updates and O(1) quantile
// retrieval, without storing the observation stream. Ported from the
// teacher's psquare.go (itself a from-scratch implementation of the
// published algorithm, not teacher-proprietary logic) and repurposed here
// to track job-duration and dispatch-cycle-latency distributions for the
// controller shell (spec §4.9/§5) instead of event-loop task latency.
package percentile

import "math"

// estimator tracks a single target quantile.
type estimator struct {
	p           float64
	q           [5]float64
	n           [5]int
	np          [5]float64
	dn          [5]float64
	initialized bool
	count       int
	initBuffer  [5]float64
}

func newEstimator(p float64) *estimator {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &estimator{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

func (e *estimator) update(x float64) {
	e.count++

	if e.count <= 5 {
		e.initBuffer[e.count-1] = x
		if e.count == 5 {
			e.initialize()
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := e.parabolic(i, sign)
			if e.q[i-1] < qPrime && qPrime < e.q[i+1] {
				e.q[i] = qPrime
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *estimator) initialize() {
	for i := 1; i < 5; i++ {
		key := e.initBuffer[i]
		j := i - 1
		for j >= 0 && e.initBuffer[j] > key {
			e.initBuffer[j+1] = e.initBuffer[j]
			j--
		}
		e.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		e.q[i] = e.initBuffer[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
	e.initialized = true
}

func (e *estimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(e.n[i])
	niPrev := float64(e.n[i-1])
	niNext := float64(e.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)

	return e.q[i] + term1*(term2+term3)
}

func (e *estimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

func (e *estimator) quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := make([]float64, e.count)
		copy(sorted, e.initBuffer[:e.count])
		for i := 1; i < e.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(e.count-1) * e.p)
		if index >= e.count {
			index = e.count - 1
		}
		return sorted[index]
	}
	return e.q[2]
}

// Tracker maintains P50/P90/P95/P99, mean and max over a stream of
// observations without retaining the observations themselves. Not
// concurrency-safe; callers needing shared access wrap it in a mutex.
type Tracker struct {
	p50, p90, p95, p99 *estimator
	sum                float64
	count              int
	max                float64
}

// NewTracker returns a Tracker ready to accept Observe calls.
func NewTracker() *Tracker {
	return &Tracker{
		p50: newEstimator(0.50),
		p90: newEstimator(0.90),
		p95: newEstimator(0.95),
		p99: newEstimator(0.99),
		max: -math.MaxFloat64,
	}
}

// Observe records one sample.
func (t *Tracker) Observe(x float64) {
	t.count++
	t.sum += x
	if x > t.max {
		t.max = x
	}
	t.p50.update(x)
	t.p90.update(x)
	t.p95.update(x)
	t.p99.update(x)
}

// Count returns the number of observations seen.
func (t *Tracker) Count() int { return t.count }

// Mean returns the arithmetic mean of all observations.
func (t *Tracker) Mean() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Max returns the largest observation seen.
func (t *Tracker) Max() float64 {
	if t.count == 0 {
		return 0
	}
	return t.max
}

// P50 returns the estimated median.
func (t *Tracker) P50() float64 { return t.p50.quantile() }

// P90 returns the estimated 90th percentile.
func (t *Tracker) P90() float64 { return t.p90.quantile() }

// P95 returns the estimated 95th percentile.
func (t *Tracker) P95() float64 { return t.p95.quantile() }

// P99 returns the estimated 99th percentile.
func (t *Tracker) P99() float64 { return t.p99.quantile() }

// Reset clears all accumulated state.
func (t *Tracker) Reset() {
	*t = *NewTracker()
}
