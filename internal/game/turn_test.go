package game_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"battleship-rampage/internal/game"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		mode      game.Mode
		hit       bool
		remaining int
		want      game.Step
	}{
		{"classic miss", game.Classic, false, 5, game.Step{Next: "b", TurnEnded: true}},
		{"classic hit", game.Classic, true, 5, game.Step{Next: "b", TurnEnded: true}},
		{"rampage miss", game.Rampage, false, 5, game.Step{Next: "b", TurnEnded: true}},
		{"rampage hit keeps shooting", game.Rampage, true, 5, game.Step{Next: "a"}},
		{"rampage hit clears fleet", game.Rampage, true, 0, game.Step{Next: "b", TurnEnded: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, game.Advance(tt.mode, "a", "b", tt.hit, tt.remaining))
		})
	}
}

func TestPickStarter_PicksBoth(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		seen[game.PickStarter(rng, "a", "b")]++
	}
	require.Len(t, seen, 2)
	require.Greater(t, seen["a"], 50)
	require.Greater(t, seen["b"], 50)
}

func TestParseMode(t *testing.T) {
	m, err := game.ParseMode("RAMPAGE")
	require.NoError(t, err)
	require.Equal(t, game.Rampage, m)

	_, err = game.ParseMode("salvo")
	require.Error(t, err)
}

// duel is one destroyer each on a 5x5 board: p1's at row 0, p2's at row 4.
func duel(t *testing.T) map[string]game.Fleet {
	q := game.Quota{game.Destroyer: 1}
	return map[string]game.Fleet{
		"p1": mustFleet(t, 5, q, "p1", ship(game.Destroyer, game.Horizontal, 0, 0)),
		"p2": mustFleet(t, 5, q, "p2", ship(game.Destroyer, game.Horizontal, 0, 4)),
	}
}

type move struct {
	player string
	x, y   int
}

func shotLog(moves ...move) []game.Shot {
	out := make([]game.Shot, len(moves))
	for i, m := range moves {
		out[i] = game.Shot{Seq: int64(i + 1), PlayerID: m.player, Target: game.Coordinate{X: m.x, Y: m.y}}
	}
	return out
}

var players = [2]string{"p1", "p2"}

func TestReplay_ClassicWinWaitsForMatchingTurn(t *testing.T) {
	fleets := duel(t)
	shots := shotLog(
		move{"p1", 0, 4}, // hit
		move{"p2", 3, 3}, // miss
		move{"p1", 1, 4}, // hit, p2's fleet gone
	)
	tally, err := game.Replay(game.Classic, 5, players, fleets, shots)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"p1": 2, "p2": 1}, tally.Turns)
	require.Equal(t, "p2", tally.Current)
	require.Equal(t, game.Playing, tally.Verdict.Outcome, "p2 is owed a turn")

	shots = shotLog(
		move{"p1", 0, 4},
		move{"p2", 3, 3},
		move{"p1", 1, 4},
		move{"p2", 4, 4}, // miss, turns now equal
	)
	tally, err = game.Replay(game.Classic, 5, players, fleets, shots)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"p1": 2, "p2": 2}, tally.Turns)
	require.Equal(t, game.Verdict{Outcome: game.Win, WinnerID: "p1"}, tally.Verdict)
}

func TestReplay_ClassicTieOnMatchingTurn(t *testing.T) {
	shots := shotLog(
		move{"p1", 0, 4},
		move{"p2", 0, 0},
		move{"p1", 1, 4}, // p2 sunk
		move{"p2", 1, 0}, // p1 sunk on the matching turn
	)
	tally, err := game.Replay(game.Classic, 5, players, duel(t), shots)
	require.NoError(t, err)
	require.Equal(t, game.Tie, tally.Verdict.Outcome)
	require.Empty(t, tally.Verdict.WinnerID)
}

func TestReplay_RampageCountsTurnsNotShots(t *testing.T) {
	fleets := duel(t)

	tally, err := game.Replay(game.Rampage, 5, players, fleets, shotLog(move{"p1", 0, 4}))
	require.NoError(t, err)
	require.Equal(t, "p1", tally.Current, "a hit earns another shot")
	require.Equal(t, 0, tally.Turns["p1"])

	tally, err = game.Replay(game.Rampage, 5, players, fleets, shotLog(
		move{"p1", 0, 4},
		move{"p1", 1, 4}, // clears p2's fleet and ends the turn
	))
	require.NoError(t, err)
	require.Equal(t, 1, tally.Turns["p1"])
	require.Equal(t, "p2", tally.Current)
	require.False(t, tally.Verdict.Terminal())

	tally, err = game.Replay(game.Rampage, 5, players, fleets, shotLog(
		move{"p1", 0, 4},
		move{"p1", 1, 4},
		move{"p2", 0, 0}, // hit
		move{"p2", 3, 3}, // miss ends p2's turn
	))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"p1": 1, "p2": 1}, tally.Turns)
	require.Equal(t, game.Verdict{Outcome: game.Win, WinnerID: "p1"}, tally.Verdict)
}

func TestReplay_RejectsBrokenLogs(t *testing.T) {
	tests := []struct {
		name  string
		shots []game.Shot
		want  error
	}{
		{"out of turn", shotLog(move{"p1", 3, 3}, move{"p1", 3, 2}), game.ErrNotYourTurn},
		{"duplicate", shotLog(move{"p1", 3, 3}, move{"p2", 3, 3}, move{"p1", 3, 3}), game.ErrDuplicateShot},
		{"off board", shotLog(move{"p1", 5, 0}), game.ErrShotOutOfBounds},
		{"stranger", shotLog(move{"p3", 0, 0}), game.ErrUnknownPlayer},
		{"after the end", shotLog(
			move{"p1", 0, 4}, move{"p2", 3, 3}, move{"p1", 1, 4}, move{"p2", 4, 4},
			move{"p1", 2, 2},
		), game.ErrGameAlreadyFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := game.Replay(game.Classic, 5, players, duel(t), tt.shots)
			require.True(t, errors.Is(err, tt.want), "want %v, have %v", tt.want, err)
		})
	}
}

func TestReplay_EmptyLog(t *testing.T) {
	tally, err := game.Replay(game.Classic, 5, players, duel(t), nil)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"p1": 0, "p2": 0}, tally.Turns)
	require.Equal(t, game.Playing, tally.Verdict.Outcome)
}

func TestReplay_CountsHitsLikeResolve(t *testing.T) {
	// an unvalidated fleet: b hangs off the right edge and c lies across it
	fleets := map[string]game.Fleet{
		"p1": {{ID: "a", Type: game.Destroyer, Orientation: game.Horizontal, Anchor: game.Coordinate{X: 0, Y: 0}}},
		"p2": {
			{ID: "b", Type: game.Destroyer, Orientation: game.Horizontal, Anchor: game.Coordinate{X: 4, Y: 4}},
			{ID: "c", Type: game.Destroyer, Orientation: game.Vertical, Anchor: game.Coordinate{X: 4, Y: 3}},
		},
	}
	shots := shotLog(
		move{"p1", 4, 4}, // hits b and c
		move{"p2", 3, 3},
		move{"p1", 4, 3}, // sinks c
		move{"p2", 3, 2},
	)
	tally, err := game.Replay(game.Classic, 5, players, fleets, shots)
	require.NoError(t, err)

	res := game.Resolve(5, fleets["p2"], game.ShotsBy(shots, "p1"))
	require.Equal(t, 1, res.HitsRemaining, "b can never be finished")
	require.Equal(t, map[string]int{"p1": 2, "p2": 2}, tally.Turns)
	require.Equal(t, game.Playing, tally.Verdict.Outcome)
}
