package game_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"battleship-rampage/internal/game"
)

func ship(t game.ShipType, o game.Orientation, x, y int) game.PlacedShip {
	return game.PlacedShip{Type: t, Orientation: o, Anchor: game.Coordinate{X: x, Y: y}}
}

// standardShips is one of each type stacked in rows 0..4.
func standardShips() []game.PlacedShip {
	return []game.PlacedShip{
		ship(game.Carrier, game.Horizontal, 0, 0),
		ship(game.Battleship, game.Horizontal, 0, 1),
		ship(game.Cruiser, game.Horizontal, 0, 2),
		ship(game.Submarine, game.Horizontal, 0, 3),
		ship(game.Destroyer, game.Horizontal, 0, 4),
	}
}

func mustFleet(t *testing.T, size int, q game.Quota, playerID string, ships ...game.PlacedShip) game.Fleet {
	t.Helper()
	f, err := game.ValidatePlacement(size, q, playerID, ships)
	require.NoError(t, err)
	return f
}

func placementErr(size int, ships []game.PlacedShip) error {
	_, err := game.ValidatePlacement(size, game.DefaultQuota(), "p1", ships)
	return err
}

func requireRule(t *testing.T, err error, rule game.PlacementRule) *game.PlacementError {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, game.ErrPlacementInvalid), "want ErrPlacementInvalid, have %v", err)
	var pe *game.PlacementError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, rule, pe.Rule)
	return pe
}

func TestValidatePlacement_Accepts(t *testing.T) {
	f, err := game.ValidatePlacement(10, game.DefaultQuota(), "p1", standardShips())
	require.NoError(t, err)
	require.Len(t, f, 5)
	require.Equal(t, 17, f.Area())

	seen := map[string]bool{}
	for _, s := range f {
		require.True(t, s.IsPlaced())
		require.Equal(t, "p1", s.PlayerID)
		require.Equal(t, s.Type.Length(), s.Size)
		require.False(t, seen[s.ID], "duplicate ship id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestValidatePlacement_VerticalFootprint(t *testing.T) {
	f := mustFleet(t, 5, game.Quota{game.Cruiser: 1}, "p1", ship(game.Cruiser, game.Vertical, 4, 2))
	require.Equal(t, []game.Coordinate{{X: 4, Y: 2}, {X: 4, Y: 3}, {X: 4, Y: 4}}, f[0].Cells())
}

func TestValidatePlacement_WrongLength(t *testing.T) {
	ships := standardShips()
	ships[2].Size = 4
	pe := requireRule(t, placementErr(10, ships), game.RuleLength)
	require.Equal(t, 2, pe.Index)
}

func TestValidatePlacement_OutOfBounds(t *testing.T) {
	cases := map[string]game.PlacedShip{
		"past right edge":  ship(game.Destroyer, game.Horizontal, 9, 4),
		"past bottom edge": ship(game.Destroyer, game.Vertical, 4, 9),
		"negative anchor":  ship(game.Destroyer, game.Horizontal, -1, 4),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			ships := standardShips()
			ships[4] = bad
			pe := requireRule(t, placementErr(10, ships), game.RuleBounds)
			require.Equal(t, 4, pe.Index)
		})
	}
}

func TestValidatePlacement_Overlap(t *testing.T) {
	ships := standardShips()
	ships[4] = ship(game.Destroyer, game.Vertical, 4, 0) // crosses the carrier at (4, 0)
	pe := requireRule(t, placementErr(10, ships), game.RuleOverlap)
	require.Equal(t, game.Coordinate{X: 4, Y: 0}, pe.Cell)
	require.Equal(t, "placement invalid: overlap: ship 4: duplicated coordinate: (4, 0)", pe.Error())
}

func TestValidatePlacement_QuotaMismatch(t *testing.T) {
	t.Run("missing ship", func(t *testing.T) {
		ships := standardShips()[:4]
		requireRule(t, placementErr(10, ships), game.RuleQuota)
	})
	t.Run("extra ship", func(t *testing.T) {
		ships := append(standardShips(), ship(game.Destroyer, game.Horizontal, 0, 6))
		requireRule(t, placementErr(10, ships), game.RuleQuota)
	})
	t.Run("swapped type", func(t *testing.T) {
		ships := standardShips()
		ships[3].Type = game.Cruiser
		requireRule(t, placementErr(10, ships), game.RuleQuota)
	})
}

func TestFleetRoot_ChangesWithLayout(t *testing.T) {
	a := mustFleet(t, 10, game.DefaultQuota(), "p1", standardShips()...)
	moved := standardShips()
	moved[4] = ship(game.Destroyer, game.Vertical, 9, 8)
	b := mustFleet(t, 10, game.DefaultQuota(), "p1", moved...)

	require.Equal(t, a.Root(10), a.Root(10))
	require.NotEqual(t, a.Root(10), b.Root(10))
}
