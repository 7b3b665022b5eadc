package rsvp

import "fmt"

// State is the guest-facing status of one invitation page.
type State int

const (
	StateLoading State = iota
	StateFound
	StateNotFound
	StateSubmitting
	StateSuccess
	StateRejected
	StateError
)

var stateNames = [...]string{
	StateLoading:    "loading",
	StateFound:      "found",
	StateNotFound:   "not-found",
	StateSubmitting: "submitting",
	StateSuccess:    "success",
	StateRejected:   "rejected",
	StateError:      "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports a recorded response; no event leaves these states.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateRejected
}

// Event drives a transition.
type Event int

const (
	EventLookupMissing Event = iota
	EventLookupActive
	EventLookupConfirmed
	EventLookupRejected
	EventLookupFailed
	EventSubmit
	EventSubmitConfirmed
	EventSubmitRejected
	EventSubmitFailed
	EventRetry
)

var eventNames = [...]string{
	EventLookupMissing:   "lookup-missing",
	EventLookupActive:    "lookup-active",
	EventLookupConfirmed: "lookup-confirmed",
	EventLookupRejected:  "lookup-rejected",
	EventLookupFailed:    "lookup-failed",
	EventSubmit:          "submit",
	EventSubmitConfirmed: "submit-ok-confirm",
	EventSubmitRejected:  "submit-ok-reject",
	EventSubmitFailed:    "submit-failed",
	EventRetry:           "retry",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

type transition struct {
	from  State
	event Event
}

// transitions is the complete table; any pair missing here is invalid.
// Retry moves error back to loading so the household is re-read before the
// guest sees the found state again.
var transitions = map[transition]State{
	{StateLoading, EventLookupMissing}:   StateNotFound,
	{StateLoading, EventLookupActive}:    StateFound,
	{StateLoading, EventLookupConfirmed}: StateSuccess,
	{StateLoading, EventLookupRejected}:  StateRejected,
	{StateLoading, EventLookupFailed}:    StateError,

	{StateFound, EventSubmit}: StateSubmitting,

	{StateSubmitting, EventSubmitConfirmed}: StateSuccess,
	{StateSubmitting, EventSubmitRejected}:  StateRejected,
	{StateSubmitting, EventSubmitFailed}:    StateError,

	{StateError, EventRetry}: StateLoading,
}

// next returns the state reached from s on e.
func next(s State, e Event) (State, bool) {
	to, ok := transitions[transition{s, e}]
	return to, ok
}
