package media

import "fmt"

// Event is a message posted on a pipeline bus. The concrete type is one of
// ErrorEvent, EOSEvent, StateChangedEvent or WarningEvent.
type Event interface {
	// Source is the name of the object that posted the event.
	Source() string
	busEvent()
}

// ErrorEvent reports an engine error. Errors are fatal for the graph.
type ErrorEvent struct {
	Origin  string
	Domain  string
	Code    int
	Message string
	Debug   string
}

// EOSEvent reports end of stream.
type EOSEvent struct {
	Origin string
}

// StateChangedEvent reports a state transition of Origin.
type StateChangedEvent struct {
	Origin  string
	Old     State
	New     State
	Pending State
}

// WarningEvent reports a non-fatal problem.
type WarningEvent struct {
	Origin  string
	Message string
	Debug   string
}

func (e ErrorEvent) Source() string        { return e.Origin }
func (e EOSEvent) Source() string          { return e.Origin }
func (e StateChangedEvent) Source() string { return e.Origin }
func (e WarningEvent) Source() string      { return e.Origin }

func (ErrorEvent) busEvent()        {}
func (EOSEvent) busEvent()          {}
func (StateChangedEvent) busEvent() {}
func (WarningEvent) busEvent()      {}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("error from %s [%s/%d]: %s", e.Origin, e.Domain, e.Code, e.Message)
}

func (e StateChangedEvent) String() string {
	return fmt.Sprintf("%s: %s -> %s [pending: %s]", e.Origin, e.Old, e.New, e.Pending)
}
