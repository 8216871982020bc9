package workflow

type Phase string
type Mode string

const (
	PhaseCollect Phase = "collect"
	PhaseGroup   Phase = "group"
	PhaseVote    Phase = "vote"
	PhaseDiscuss Phase = "discuss"
	PhaseDone    Phase = "done"
)

// ModeGuided walks the team through one phase at a time; ModeFreeform
// leaves every action open until the board is done.
const (
	ModeGuided   Mode = "guided"
	ModeFreeform Mode = "freeform"
)

func IsCardCreationAllowed(phase Phase, mode Mode) bool {
	switch mode {
	case ModeFreeform:
		return phase != PhaseDone
	case ModeGuided:
		return phase == PhaseCollect
	default:
		return false
	}
}

func IsGroupingAllowed(phase Phase, mode Mode) bool {
	switch mode {
	case ModeFreeform:
		return phase != PhaseDone
	case ModeGuided:
		return phase == PhaseCollect || phase == PhaseGroup
	default:
		return false
	}
}

func NormalizePhase(phase string) Phase {
	switch Phase(phase) {
	case PhaseCollect, PhaseGroup, PhaseVote, PhaseDiscuss, PhaseDone:
		return Phase(phase)
	default:
		return PhaseCollect
	}
}

func NormalizeMode(mode string) Mode {
	switch Mode(mode) {
	case ModeGuided, ModeFreeform:
		return Mode(mode)
	default:
		return ModeGuided
	}
}

// ValidPhase reports whether phase names a known phase.
func ValidPhase(phase string) bool {
	return NormalizePhase(phase) == Phase(phase)
}
