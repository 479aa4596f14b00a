package engine

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from LeadState
		to   LeadState
		want bool
	}{
		{StateNew, StateInitialSent, true},
		{StateNew, StateSkipped, true},
		{StateNew, StateFailed, true},
		{StateNew, StateFollowupSent, false},
		{StateNew, StateReplied, false},
		{StateInitialSent, StateReplied, true},
		{StateInitialSent, StateFollowupSent, true},
		{StateInitialSent, StateFailed, true},
		{StateInitialSent, StateClosed, false},
		{StateInitialSent, StateNew, false},
		{StateFollowupSent, StateReplied, true},
		{StateFollowupSent, StateClosed, true},
		{StateFollowupSent, StateFailed, true},
		{StateFollowupSent, StateFollowupSent, false},
		{StateReplied, StateFollowupSent, false},
		{StateClosed, StateReplied, false},
		{StateFailed, StateNew, false},
		{StateSkipped, StateInitialSent, false},
		{StateFollowupDue, StateFollowupSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestLeadStateProperties(t *testing.T) {
	terminal := map[LeadState]bool{
		StateReplied: true,
		StateClosed:  true,
		StateFailed:  true,
		StateSkipped: true,
	}

	for _, s := range AllStates {
		if got := s.IsTerminal(); got != terminal[s] {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, terminal[s])
		}
		if err := s.Validate(); err != nil {
			t.Errorf("%s.Validate() = %v", s, err)
		}
	}

	if !StateFailed.IsReopenable() || !StateSkipped.IsReopenable() {
		t.Error("FAILED and SKIPPED must be re-openable")
	}
	if StateReplied.IsReopenable() || StateNew.IsReopenable() {
		t.Error("only FAILED and SKIPPED are re-openable")
	}
	if err := StateFollowupDue.Validate(); err == nil {
		t.Error("derived FOLLOWUP_DUE must not validate as a persisted state")
	}
}

func TestParseLeadState(t *testing.T) {
	tests := []struct {
		in      string
		want    LeadState
		wantErr bool
	}{
		{"NEW", StateNew, false},
		{" initial_sent ", StateInitialSent, false},
		{"followup_due", StateFollowupDue, false},
		{"PENDING", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLeadState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLeadState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLeadState(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEventForState(t *testing.T) {
	if EventForState(StateNew) != EventReopened {
		t.Error("a transition to NEW is a re-open")
	}
	if EventForState(StateFollowupSent) != EventFollowupSent {
		t.Error("unexpected event for FOLLOWUP_SENT")
	}
}

func TestStageValidate(t *testing.T) {
	if err := StageInitial.Validate(); err != nil {
		t.Errorf("initial stage invalid: %v", err)
	}
	if err := Stage("reminder").Validate(); err == nil {
		t.Error("expected unknown stage to be invalid")
	}
}
