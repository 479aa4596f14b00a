package engine

import (
	"fmt"
	"strings"
)

// LeadState is the persisted position of a lead in the outreach workflow.
type LeadState string

const (
	// StateNew indicates the lead has been sourced but never contacted.
	StateNew LeadState = "NEW"

	// StateInitialSent indicates the initial email was delivered.
	StateInitialSent LeadState = "INITIAL_SENT"

	// StateFollowupSent indicates the single follow-up email was delivered.
	StateFollowupSent LeadState = "FOLLOWUP_SENT"

	// StateReplied indicates a reply from the lead was observed.
	StateReplied LeadState = "REPLIED"

	// StateClosed indicates the observation window after the follow-up elapsed without a reply.
	StateClosed LeadState = "CLOSED"

	// StateFailed indicates a non-retryable failure. Only an explicit re-open leaves it.
	StateFailed LeadState = "FAILED"

	// StateSkipped indicates the lead failed validation or screening and will never be contacted.
	StateSkipped LeadState = "SKIPPED"
)

// StateFollowupDue is a derived state reported for INITIAL_SENT leads whose
// follow-up delay has elapsed. It is never persisted.
const StateFollowupDue LeadState = "FOLLOWUP_DUE"

// AllStates lists the persisted states in workflow order.
var AllStates = []LeadState{
	StateNew,
	StateInitialSent,
	StateFollowupSent,
	StateReplied,
	StateClosed,
	StateFailed,
	StateSkipped,
}

// transitions is the forward edge set of the lead state machine.
var transitions = map[LeadState][]LeadState{
	StateNew:          {StateInitialSent, StateSkipped, StateFailed},
	StateInitialSent:  {StateReplied, StateFollowupSent, StateFailed},
	StateFollowupSent: {StateReplied, StateClosed, StateFailed},
}

// reopenable lists the states an operator may send back to NEW.
var reopenable = map[LeadState]bool{
	StateFailed:  true,
	StateSkipped: true,
}

// IsTerminal returns true if the orchestrator never acts on a lead in this state.
func (s LeadState) IsTerminal() bool {
	return s == StateReplied || s == StateClosed || s == StateFailed || s == StateSkipped
}

// IsReopenable returns true if the RE-OPEN action accepts a lead in this state.
func (s LeadState) IsReopenable() bool {
	return reopenable[s]
}

// Validate checks if the lead state is a persisted state.
func (s LeadState) Validate() error {
	switch s {
	case StateNew, StateInitialSent, StateFollowupSent, StateReplied,
		StateClosed, StateFailed, StateSkipped:
		return nil
	default:
		return fmt.Errorf("invalid lead state: %s", s)
	}
}

// CanTransition reports whether from -> to is a forward edge of the state machine.
// RE-OPEN is not a forward edge and is checked with IsReopenable.
func CanTransition(from, to LeadState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseLeadState parses a state name, accepting any letter case.
func ParseLeadState(s string) (LeadState, error) {
	state := LeadState(strings.ToUpper(strings.TrimSpace(s)))
	if state == StateFollowupDue {
		return state, nil
	}
	if err := state.Validate(); err != nil {
		return "", err
	}
	return state, nil
}

// Stage identifies which email of the sequence is being produced.
type Stage string

const (
	// StageInitial is the first contact email.
	StageInitial Stage = "initial"

	// StageFollowup is the single follow-up email.
	StageFollowup Stage = "followup"
)

// Validate checks if the stage is known.
func (s Stage) Validate() error {
	switch s {
	case StageInitial, StageFollowup:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// EventType names an entry in a lead's event log.
type EventType string

const (
	EventInitialSent  EventType = "INITIAL_SENT"
	EventFollowupSent EventType = "FOLLOWUP_SENT"
	EventReplied      EventType = "REPLIED"
	EventClosed       EventType = "CLOSED"
	EventSkipped      EventType = "SKIPPED"
	EventFailed       EventType = "FAILED"
	EventReopened     EventType = "REOPENED"
)

// EventForState returns the event recorded when a lead enters state.
func EventForState(state LeadState) EventType {
	switch state {
	case StateNew:
		return EventReopened
	default:
		return EventType(state)
	}
}
