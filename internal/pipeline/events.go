package pipeline

import "time"

// Stage names one step of a build.
type Stage string

const (
	StageLoad    Stage = "load"
	StageRender  Stage = "render"
	StageCompile Stage = "compile"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageRender, StageCompile}

// Status enumerates stage states.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status ends a stage.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusFailed
}

// Event is one progress notification.
type Event struct {
	RunID  string
	Stage  Stage
	Status Status
	Detail string
	Time   time.Time
}

// Observer receives events in the order they happen.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Multi fans events out to several observers. Nil entries are ignored.
func Multi(observers ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}
