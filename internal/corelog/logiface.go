package corelog

import (
	"github.com/joeycumines/logiface"
)

// event is the minimal logiface.Event implementation needed to bridge a
// logiface.Logger into our Logger interface: it accumulates fields, then
// hands them to a Logger on release. It embeds UnimplementedEvent as every
// logiface.Event implementation must.
type event struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	message string
	fields  []Field
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) {
	e.fields = append(e.fields, Field{Key: key, Value: val})
}

func (e *event) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func toLevel(l logiface.Level) Level {
	// logiface levels follow syslog order: lower values are more severe.
	switch {
	case l <= logiface.LevelError:
		return LevelError
	case l <= logiface.LevelWarning:
		return LevelWarn
	case l <= logiface.LevelInformational:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// NewLogifaceLogger builds a corelog.Logger backed by a logiface.Logger,
// letting a host that has already standardized on logiface (as the
// teacher's own test suite does) route chunkctl's structured events through
// its existing sinks (zerolog, logrus, stumpy, ...) without this module
// importing any of those backends directly.
func NewLogifaceLogger(target *logiface.Logger[*event]) Logger {
	return LoggerFunc(func(level Level, message string, fields ...Field) {
		lvl := toLogifaceLevel(level)
		b := target.Build(lvl)
		if b == nil {
			return
		}
		for _, f := range fields {
			b = b.Field(f.Key, f.Value)
		}
		b.Log(message)
	})
}

func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelError:
		return logiface.LevelError
	case LevelWarn:
		return logiface.LevelWarning
	case LevelDebug:
		return logiface.LevelDebug
	default:
		return logiface.LevelInformational
	}
}

// NewLogifaceEventFactory builds the logiface.Logger plumbing (factory +
// writer) required to construct a Logger[*event] whose sink is an arbitrary
// corelog.Logger. This lets a test or a host pass in a corelog-native sink
// (e.g. a slice-collecting test logger) and still exercise real logiface
// call paths (Builder chaining, field accumulation, level gating).
func NewLogifaceEventFactory(sink Logger) *logiface.Logger[*event] {
	return logiface.New[*event](
		logiface.WithEventFactory(logiface.NewEventFactoryFunc(func(level logiface.Level) *event {
			return &event{level: level}
		})),
		logiface.WithWriter(logiface.NewWriterFunc(func(e *event) error {
			sink.Log(toLevel(e.level), e.message, e.fields...)
			return nil
		})),
		logiface.WithLevel[*event](logiface.LevelTrace),
	)
}
