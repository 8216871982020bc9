package workflow

import "testing"

func TestIsGroupingAllowed(t *testing.T) {
	cases := []struct {
		name  string
		phase Phase
		mode  Mode
		allow bool
	}{
		{name: "guided collect", phase: PhaseCollect, mode: ModeGuided, allow: true},
		{name: "guided group", phase: PhaseGroup, mode: ModeGuided, allow: true},
		{name: "guided vote", phase: PhaseVote, mode: ModeGuided, allow: false},
		{name: "guided done", phase: PhaseDone, mode: ModeGuided, allow: false},
		{name: "freeform discuss", phase: PhaseDiscuss, mode: ModeFreeform, allow: true},
		{name: "freeform done", phase: PhaseDone, mode: ModeFreeform, allow: false},
		{name: "unknown mode", phase: PhaseCollect, mode: Mode("chaos"), allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsGroupingAllowed(tc.phase, tc.mode); got != tc.allow {
				t.Fatalf("IsGroupingAllowed(%q, %q) = %v, want %v", tc.phase, tc.mode, got, tc.allow)
			}
		})
	}
}

func TestIsCardCreationAllowed(t *testing.T) {
	cases := []struct {
		name  string
		phase Phase
		mode  Mode
		allow bool
	}{
		{name: "guided collect", phase: PhaseCollect, mode: ModeGuided, allow: true},
		{name: "guided group", phase: PhaseGroup, mode: ModeGuided, allow: false},
		{name: "freeform vote", phase: PhaseVote, mode: ModeFreeform, allow: true},
		{name: "freeform done", phase: PhaseDone, mode: ModeFreeform, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCardCreationAllowed(tc.phase, tc.mode); got != tc.allow {
				t.Fatalf("IsCardCreationAllowed(%q, %q) = %v, want %v", tc.phase, tc.mode, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if NormalizePhase("vote") != PhaseVote || NormalizePhase("nope") != PhaseCollect {
		t.Fatal("NormalizePhase mismatch")
	}
	if NormalizeMode("freeform") != ModeFreeform || NormalizeMode("") != ModeGuided {
		t.Fatal("NormalizeMode mismatch")
	}
	if IsCardCreationAllowed(PhaseCollect, Mode("chaos")) || !IsCardCreationAllowed(PhaseCollect, NormalizeMode("chaos")) {
		t.Fatal("an unknown mode must be normalized to guided before gating")
	}
	if !ValidPhase("discuss") || ValidPhase("later") {
		t.Fatal("ValidPhase mismatch")
	}
}
