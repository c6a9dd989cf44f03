package game

import "fmt"

type Outcome int

const (
	Playing Outcome = iota
	Win
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Playing:
		return "playing"
	case Win:
		return "win"
	case Tie:
		return "tie"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "playing", "":
		*o = Playing
	case "win":
		*o = Win
	case "tie":
		*o = Tie
	default:
		return fmt.Errorf("unknown outcome %q", string(b))
	}
	return nil
}

// Contender is one side as the arbiter sees it. HitsRemaining counts the
// unhit cells of this contender's own fleet.
type Contender struct {
	PlayerID      string
	HitsRemaining int
	TurnsPlayed   int
}

type Verdict struct {
	Outcome  Outcome `json:"outcome"`
	WinnerID string  `json:"winnerId,omitempty"`
}

func (v Verdict) Terminal() bool { return v.Outcome != Playing }

// Decide is the win/tie rule. Nothing is decided while both fleets still
// have unhit cells, or while the turn counts differ: the trailing player
// always gets the matching turn. Decide(a, b) == Decide(b, a).
func Decide(a, b Contender) Verdict {
	if a.HitsRemaining > 0 && b.HitsRemaining > 0 {
		return Verdict{Outcome: Playing}
	}
	if a.TurnsPlayed != b.TurnsPlayed {
		return Verdict{Outcome: Playing}
	}
	switch {
	case a.HitsRemaining <= 0 && b.HitsRemaining <= 0:
		return Verdict{Outcome: Tie}
	case a.HitsRemaining <= 0:
		return Verdict{Outcome: Win, WinnerID: b.PlayerID}
	default:
		return Verdict{Outcome: Win, WinnerID: a.PlayerID}
	}
}
