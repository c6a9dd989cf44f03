package store

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"battleship-rampage/internal/game"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrExists   = errors.New("game already exists")
)

// Stale-game retention, mirroring the hosted cleanup job.
const (
	IdleTTL     = 6 * time.Hour
	InactiveTTL = time.Hour // finished or never joined
)

type record struct {
	Game   game.Game             `cbor:"game"`
	Fleets map[string]game.Fleet `cbor:"fleets"`
	Shots  []game.Shot           `cbor:"shots"`
}

// Memory keeps games, fleets and the shot log in process. Every read returns
// a copy; every write is atomic under one lock.
type Memory struct {
	mu    sync.RWMutex
	games map[string]*record
	seq   int64
	dirty bool

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*record), now: time.Now}
}

// WithClock replaces the clock used for UpdatedAt stamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func cloneGame(g game.Game) game.Game {
	g.Quota = maps.Clone(g.Quota)
	return g
}

func (m *Memory) get(id string) (*record, error) {
	r, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (m *Memory) CreateGame(g game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, g.ID)
	}
	m.games[g.ID] = &record{Game: cloneGame(g), Fleets: make(map[string]game.Fleet)}
	m.dirty = true
	return nil
}

func (m *Memory) LoadGame(id string) (game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.get(id)
	if err != nil {
		return game.Game{}, err
	}
	return cloneGame(r.Game), nil
}

// LoadFleet returns playerID's committed fleet, empty if none.
func (m *Memory) LoadFleet(gameID, playerID string) (game.Fleet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.get(gameID)
	if err != nil {
		return nil, err
	}
	return append(game.Fleet(nil), r.Fleets[playerID]...), nil
}

// LoadShots returns the whole log in creation order.
func (m *Memory) LoadShots(gameID string) ([]game.Shot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.get(gameID)
	if err != nil {
		return nil, err
	}
	return append([]game.Shot(nil), r.Shots...), nil
}

// LoadMatch returns the game with every committed fleet and the shot log,
// all read at the same instant.
func (m *Memory) LoadMatch(gameID string) (game.Game, map[string]game.Fleet, []game.Shot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.get(gameID)
	if err != nil {
		return game.Game{}, nil, nil, err
	}
	fleets := make(map[string]game.Fleet, len(r.Fleets))
	for id, f := range r.Fleets {
		fleets[id] = append(game.Fleet(nil), f...)
	}
	return cloneGame(r.Game), fleets, append([]game.Shot(nil), r.Shots...), nil
}

// CommitFleet replaces playerID's fleet wholesale.
func (m *Memory) CommitFleet(gameID, playerID string, fleet game.Fleet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(gameID)
	if err != nil {
		return err
	}
	r.Fleets[playerID] = append(game.Fleet(nil), fleet...)
	m.dirty = true
	return nil
}

// AppendShot adds a shot to the log with the next sequence number.
func (m *Memory) AppendShot(gameID, playerID string, target game.Coordinate) (game.Shot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(gameID)
	if err != nil {
		return game.Shot{}, err
	}
	m.seq++
	s := game.Shot{Seq: m.seq, PlayerID: playerID, Target: target, CreatedAt: m.now().UTC()}
	r.Shots = append(r.Shots, s)
	m.dirty = true
	return s, nil
}

// UpdateGame applies mut to a copy of the game and stores it only if mut
// succeeds.
func (m *Memory) UpdateGame(id string, mut func(*game.Game) error) (game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(id)
	if err != nil {
		return game.Game{}, err
	}
	g := cloneGame(r.Game)
	if err := mut(&g); err != nil {
		return game.Game{}, err
	}
	g.UpdatedAt = m.now().UTC()
	r.Game = g
	m.dirty = true
	return cloneGame(g), nil
}

// ClearBoard drops both fleets and the shot log.
func (m *Memory) ClearBoard(gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.get(gameID)
	if err != nil {
		return err
	}
	r.Fleets = make(map[string]game.Fleet)
	r.Shots = nil
	m.dirty = true
	return nil
}

// DeleteStale removes games idle for IdleTTL, or for InactiveTTL when they
// are finished or still waiting for a second player.
func (m *Memory) DeleteStale(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.games {
		idle := now.Sub(r.Game.UpdatedAt)
		inactive := r.Game.State == game.StateFinished || r.Game.State == game.StateWaitingForPlayer
		if idle >= IdleTTL || (inactive && idle >= InactiveTTL) {
			delete(m.games, id)
			n++
		}
	}
	if n > 0 {
		m.dirty = true
	}
	return n, nil
}
