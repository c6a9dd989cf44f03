package game_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"battleship-rampage/internal/game"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		a, b game.Contender
		want game.Verdict
	}{
		{
			name: "both fleets afloat",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 3, TurnsPlayed: 4},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 1, TurnsPlayed: 4},
			want: game.Verdict{Outcome: game.Playing},
		},
		{
			name: "sunk but opponent still owed a turn",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 5, TurnsPlayed: 3},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 0, TurnsPlayed: 2},
			want: game.Verdict{Outcome: game.Playing},
		},
		{
			name: "sunk and turns equal",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 5, TurnsPlayed: 3},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 0, TurnsPlayed: 3},
			want: game.Verdict{Outcome: game.Win, WinnerID: "a"},
		},
		{
			name: "own fleet exhausted",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 0, TurnsPlayed: 6},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 2, TurnsPlayed: 6},
			want: game.Verdict{Outcome: game.Win, WinnerID: "b"},
		},
		{
			name: "both exhausted on the same round",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 0, TurnsPlayed: 6},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 0, TurnsPlayed: 6},
			want: game.Verdict{Outcome: game.Tie},
		},
		{
			name: "both exhausted, turns unequal",
			a:    game.Contender{PlayerID: "a", HitsRemaining: 0, TurnsPlayed: 6},
			b:    game.Contender{PlayerID: "b", HitsRemaining: 0, TurnsPlayed: 5},
			want: game.Verdict{Outcome: game.Playing},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, game.Decide(tt.a, tt.b))
			require.Equal(t, tt.want, game.Decide(tt.b, tt.a), "decision must not depend on argument order")
		})
	}
}

func TestDecide_Properties(t *testing.T) {
	for ha := 0; ha <= 3; ha++ {
		for hb := 0; hb <= 3; hb++ {
			for ta := 0; ta <= 3; ta++ {
				for tb := 0; tb <= 3; tb++ {
					a := game.Contender{PlayerID: "a", HitsRemaining: ha, TurnsPlayed: ta}
					b := game.Contender{PlayerID: "b", HitsRemaining: hb, TurnsPlayed: tb}
					v := game.Decide(a, b)

					if ta != tb {
						require.False(t, v.Terminal(), "decided with unequal turns: %+v %+v", a, b)
					}
					isTie := ha == 0 && hb == 0 && ta == tb
					require.Equal(t, isTie, v.Outcome == game.Tie, "%+v %+v", a, b)
					require.Equal(t, v, game.Decide(b, a))
				}
			}
		}
	}
}
