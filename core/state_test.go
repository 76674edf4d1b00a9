package core

import "testing"

func TestCanTransition_AllowedSet(t *testing.T) {
	allowed := []struct{ from, to ConversationState }{
		{StateGathering, StateClarifying},
		{StateClarifying, StateGathering},
		{StateGathering, StateProposing},
		{StateClarifying, StateProposing},
		{StateProposing, StateReadyToFinalize},
		{StateProposing, StateGathering},
		{StateReadyToFinalize, StateGathering},
		{StateReadyToFinalize, StateFinalized},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectedSet(t *testing.T) {
	rejected := []struct{ from, to ConversationState }{
		{StateGathering, StateReadyToFinalize},
		{StateGathering, StateFinalized},
		{StateClarifying, StateFinalized},
		{StateClarifying, StateReadyToFinalize},
		{StateProposing, StateClarifying},
		{StateFinalized, StateGathering},
		{StateFinalized, StateProposing},
		{StateFinalized, StateFinalized},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestCanTransition_NoOpOutsideFinalized(t *testing.T) {
	for _, s := range []ConversationState{StateGathering, StateClarifying, StateProposing, StateReadyToFinalize} {
		if !CanTransition(s, s) {
			t.Errorf("no-op transition in %s should be allowed", s)
		}
	}
}

func TestAgentRole_Other(t *testing.T) {
	if RoleBA.Other() != RoleTL || RoleTL.Other() != RoleBA {
		t.Error("Other should swap roles")
	}
}
