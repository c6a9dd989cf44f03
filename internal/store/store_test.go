package store

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"battleship-rampage/internal/game"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func seeded(t *testing.T, c *clock) *Memory {
	t.Helper()
	m := NewMemory().WithClock(c.now)
	g, err := game.NewGame("g1", game.Rampage, 6, game.Quota{game.Destroyer: 2}, "p1", "Alice", c.t)
	require.NoError(t, err)
	require.NoError(t, m.CreateGame(g))
	return m
}

func TestMemory_GameCopies(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := seeded(t, c)

	g, err := m.LoadGame("g1")
	require.NoError(t, err)
	g.Quota[game.Carrier] = 9
	g.State = game.StateFinished

	again, err := m.LoadGame("g1")
	require.NoError(t, err)
	require.Zero(t, again.Quota[game.Carrier])
	require.Equal(t, game.StateWaitingForPlayer, again.State)

	_, err = m.LoadGame("nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.CreateGame(g), ErrExists)
}

func TestMemory_UpdateGameIsAllOrNothing(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := seeded(t, c)

	_, err := m.UpdateGame("g1", func(g *game.Game) error {
		g.Seats[1].ID = "half-written"
		return g.Start("p1")
	})
	require.ErrorIs(t, err, game.ErrInvalidStateTransition)

	g, err := m.LoadGame("g1")
	require.NoError(t, err)
	require.Empty(t, g.Seats[1].ID)

	c.t = c.t.Add(time.Minute)
	g, err = m.UpdateGame("g1", func(g *game.Game) error { return g.Join("p2", "Bob") })
	require.NoError(t, err)
	require.Equal(t, c.t, g.UpdatedAt)
}

func TestMemory_ShotsAndFleets(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := seeded(t, c)

	f1 := game.Fleet{{ID: "s1", Type: game.Destroyer}}
	require.NoError(t, m.CommitFleet("g1", "p1", f1))
	require.NoError(t, m.CommitFleet("g1", "p1", game.Fleet{{ID: "s2", Type: game.Destroyer}}))
	got, err := m.LoadFleet("g1", "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "s2", got[0].ID, "commit replaces the previous fleet")

	a, err := m.AppendShot("g1", "p1", game.Coordinate{X: 1, Y: 1})
	require.NoError(t, err)
	b, err := m.AppendShot("g1", "p2", game.Coordinate{X: 2, Y: 2})
	require.NoError(t, err)
	require.Less(t, a.Seq, b.Seq)

	shots, err := m.LoadShots("g1")
	require.NoError(t, err)
	require.Equal(t, []game.Shot{a, b}, shots)

	require.NoError(t, m.ClearBoard("g1"))
	shots, err = m.LoadShots("g1")
	require.NoError(t, err)
	require.Empty(t, shots)
	got, err = m.LoadFleet("g1", "p1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemory_LoadMatch(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := seeded(t, c)
	require.NoError(t, m.CommitFleet("g1", "p1", game.Fleet{{ID: "s1", Type: game.Destroyer}}))
	shot, err := m.AppendShot("g1", "p1", game.Coordinate{X: 3, Y: 3})
	require.NoError(t, err)

	g, fleets, shots, err := m.LoadMatch("g1")
	require.NoError(t, err)
	require.Equal(t, "g1", g.ID)
	require.Equal(t, []game.Shot{shot}, shots)
	require.Len(t, fleets, 1)
	require.Equal(t, "s1", fleets["p1"][0].ID)

	fleets["p1"][0].ID = "changed"
	fleets["p2"] = game.Fleet{{ID: "s9"}}
	shots[0].Target = game.Coordinate{}
	g.Quota[game.Destroyer] = 9

	g, fleets, shots, err = m.LoadMatch("g1")
	require.NoError(t, err)
	require.Equal(t, "s1", fleets["p1"][0].ID)
	require.NotContains(t, fleets, "p2")
	require.Equal(t, game.Coordinate{X: 3, Y: 3}, shots[0].Target)
	require.Equal(t, 2, g.Quota[game.Destroyer])

	_, _, _, err = m.LoadMatch("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DeleteStale(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &clock{t: start}
	m := seeded(t, c) // waiting for a player

	g2, err := game.NewGame("g2", game.Classic, 6, game.Quota{game.Destroyer: 1}, "p1", "", start)
	require.NoError(t, err)
	require.NoError(t, m.CreateGame(g2))
	_, err = m.UpdateGame("g2", func(g *game.Game) error { return g.Join("p2", "") })
	require.NoError(t, err)

	n, err := m.DeleteStale(start.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = m.DeleteStale(start.Add(90 * time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the unjoined game expires after an hour")
	_, err = m.LoadGame("g1")
	require.ErrorIs(t, err, ErrNotFound)

	n, err = m.DeleteStale(start.Add(7 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)}
	m := seeded(t, c)
	require.NoError(t, m.CommitFleet("g1", "p1", game.Fleet{{ID: "s1", PlayerID: "p1", Type: game.Destroyer, Size: 2, Orientation: game.Vertical, Anchor: game.Coordinate{X: 3, Y: 1}}}))
	_, err := m.AppendShot("g1", "p2", game.Coordinate{X: 3, Y: 2})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "games.cbor")
	wrote, err := m.Flush(path)
	require.NoError(t, err)
	require.True(t, wrote)
	wrote, err = m.Flush(path)
	require.NoError(t, err)
	require.False(t, wrote, "nothing changed since the last flush")

	loaded, err := OpenFile(path)
	require.NoError(t, err)

	wantGame, _ := m.LoadGame("g1")
	haveGame, err := loaded.LoadGame("g1")
	require.NoError(t, err)
	require.True(t, wantGame.CreatedAt.Equal(haveGame.CreatedAt))
	wantGame.CreatedAt, haveGame.CreatedAt = time.Time{}, time.Time{}
	wantGame.UpdatedAt, haveGame.UpdatedAt = time.Time{}, time.Time{}
	require.Equal(t, wantGame, haveGame)

	fleet, err := loaded.LoadFleet("g1", "p1")
	require.NoError(t, err)
	require.Equal(t, game.Vertical, fleet[0].Orientation)
	require.Equal(t, []game.Coordinate{{X: 3, Y: 1}, {X: 3, Y: 2}}, fleet[0].Cells())

	next, err := loaded.AppendShot("g1", "p1", game.Coordinate{X: 0, Y: 0})
	require.NoError(t, err)
	require.Equal(t, int64(2), next.Seq, "sequence survives a restart")
}

func TestSnapshot_RejectsOtherMajor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, cbor.NewEncoder(&buf).Encode(snapshot{Version: "2.0.0"}))
	err := NewMemory().ReadSnapshot(&buf)
	require.ErrorContains(t, err, "incompatible")
}

func TestOpenFile_Missing(t *testing.T) {
	m, err := OpenFile(filepath.Join(t.TempDir(), "none.cbor"))
	require.NoError(t, err)
	_, err = m.LoadGame("g1")
	require.ErrorIs(t, err, ErrNotFound)
}
