package game

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Mode decides how turns advance.
type Mode int

const (
	// Classic passes the turn after every shot.
	Classic Mode = iota
	// Rampage lets a hit earn another shot in the same turn.
	Rampage
)

func (m Mode) String() string {
	switch m {
	case Classic:
		return "classic"
	case Rampage:
		return "rampage"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "classic", "":
		return Classic, nil
	case "rampage":
		return Rampage, nil
	}
	return Classic, fmt.Errorf("unknown game mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Step is the outcome of one shot for the turn order.
type Step struct {
	Next      string // who shoots next
	TurnEnded bool   // the shooter's turnsPlayed goes up by one
}

// Advance applies one shot by shooter. targetHitsRemaining is the number of
// unhit cells left in the opponent's fleet after this shot.
func Advance(mode Mode, shooter, opponent string, hit bool, targetHitsRemaining int) Step {
	if mode == Rampage && hit && targetHitsRemaining > 0 {
		return Step{Next: shooter}
	}
	return Step{Next: opponent, TurnEnded: true}
}

// PickStarter chooses the first shooter uniformly at random.
func PickStarter(rng *rand.Rand, a, b string) string {
	if rng.IntN(2) == 0 {
		return a
	}
	return b
}

// Tally is the turn state re-derived from a shot log.
type Tally struct {
	Turns   map[string]int `json:"turns"`
	Current string         `json:"current"`
	Verdict Verdict        `json:"verdict"`
}

// Replay walks an append-only shot log from the first shot and re-derives
// turn counters, the current shooter and the verdict. The first shot's owner
// is taken as the starting player. A log that breaks turn order, repeats a
// cell or continues after a decision is rejected.
func Replay(mode Mode, boardSize int, players [2]string, fleets map[string]Fleet, shots []Shot) (Tally, error) {
	t := Tally{Turns: map[string]int{players[0]: 0, players[1]: 0}}
	if len(shots) == 0 {
		return t, nil
	}

	n := uint(boardSize * boardSize)
	// cover counts the ships on each cell so a hit is charged to every ship
	// it lands on, the way Resolve counts it.
	cover := make(map[string][]int, 2)
	fired := make(map[string]*bitset.BitSet, 2)
	remaining := make(map[string]int, 2)
	for _, p := range players {
		cover[p] = make([]int, n)
		for _, s := range fleets[p] {
			for _, c := range s.Cells() {
				if c.InBounds(boardSize) {
					cover[p][c.index(boardSize)]++
				}
			}
		}
		fired[p] = bitset.New(n)
		remaining[p] = fleets[p].Area()
	}

	opponentOf := func(p string) string {
		if p == players[0] {
			return players[1]
		}
		return players[0]
	}

	t.Current = shots[0].PlayerID
	for _, s := range shots {
		if s.PlayerID != players[0] && s.PlayerID != players[1] {
			return t, fmt.Errorf("shot %d: %w: %s", s.Seq, ErrUnknownPlayer, s.PlayerID)
		}
		if t.Verdict.Outcome != Playing {
			return t, fmt.Errorf("shot %d: %w", s.Seq, ErrGameAlreadyFinished)
		}
		if s.PlayerID != t.Current {
			return t, fmt.Errorf("shot %d: %w: %s fired during %s's turn", s.Seq, ErrNotYourTurn, s.PlayerID, t.Current)
		}
		if !s.Target.InBounds(boardSize) {
			return t, fmt.Errorf("shot %d: %w: %s", s.Seq, ErrShotOutOfBounds, s.Target)
		}
		idx := s.Target.index(boardSize)
		if fired[s.PlayerID].Test(idx) {
			return t, fmt.Errorf("shot %d: %w: %s", s.Seq, ErrDuplicateShot, s.Target)
		}
		fired[s.PlayerID].Set(idx)

		opp := opponentOf(s.PlayerID)
		hit := cover[opp][idx] > 0
		remaining[opp] -= cover[opp][idx]
		step := Advance(mode, s.PlayerID, opp, hit, remaining[opp])
		if step.TurnEnded {
			t.Turns[s.PlayerID]++
		}
		t.Current = step.Next
		t.Verdict = Decide(
			Contender{PlayerID: players[0], HitsRemaining: remaining[players[0]], TurnsPlayed: t.Turns[players[0]]},
			Contender{PlayerID: players[1], HitsRemaining: remaining[players[1]], TurnsPlayed: t.Turns[players[1]]},
		)
	}
	return t, nil
}
