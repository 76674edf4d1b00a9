package core

import "testing"

func TestNewRecord_MultiAgentInitialization(t *testing.T) {
	rec := NewRecord("s1", RepoRef{Owner: "octo", Name: "spoon"}, KindMulti, BudgetSnapshot{InitialTokens: 10000, InitialCost: 5})
	if rec.State != StateGathering {
		t.Fatalf("initial state should be gathering, got %s", rec.State)
	}
	if rec.MultiAgent == nil || rec.MultiAgent.ActiveAgent != RoleBA {
		t.Fatal("multi-agent record should start with BA active")
	}
	if rec.MultiAgent.Collaboration != CollaborationActive {
		t.Error("collaboration should start active")
	}

	single := NewRecord("s2", RepoRef{Owner: "octo", Name: "spoon"}, KindSingle, BudgetSnapshot{})
	if single.MultiAgent != nil {
		t.Error("single-agent record should carry no routing ledger")
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec := NewRecord("s1", RepoRef{Owner: "octo", Name: "spoon"}, KindMulti, BudgetSnapshot{InitialTokens: 1000})
	rec.History = append(rec.History, NewHandoffTurn(RoleBA, RoleTL, "api question"))
	rec.ProposedIssues = []WorkItem{{Title: "a", Body: "b"}}
	rec.TokenBudget.Extensions = []Extension{{Tokens: 500, Reason: "more"}}

	clone := rec.Clone()
	clone.History[0].Handoff.Reason = "changed"
	clone.ProposedIssues[0].Title = "changed"
	clone.TokenBudget.Extensions[0].Tokens = 9
	clone.MultiAgent.ActiveAgent = RoleTL

	if rec.History[0].Handoff.Reason != "api question" {
		t.Error("handoff metadata should be deep copied")
	}
	if rec.ProposedIssues[0].Title != "a" {
		t.Error("proposed issues should be deep copied")
	}
	if rec.TokenBudget.Extensions[0].Tokens != 500 {
		t.Error("extension ledger should be deep copied")
	}
	if rec.MultiAgent.ActiveAgent != RoleBA {
		t.Error("routing ledger should be deep copied")
	}
}
