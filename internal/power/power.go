// Package power reports machine suspend and resume.
package power

// Event is a power transition.
type Event int

const (
	// Suspend is sent before the machine sleeps, where the platform tells us.
	Suspend Event = iota + 1
	// Resume is sent after the machine wakes.
	Resume
)

func (e Event) String() string {
	switch e {
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	default:
		return "unknown"
	}
}

// Monitor delivers power events until it is closed.
type Monitor interface {
	Events() <-chan Event
	Close() error
}
