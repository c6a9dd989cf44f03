package app

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"battleship-rampage/internal/game"
	"battleship-rampage/internal/notify"
	"battleship-rampage/internal/store"
)

// Store is the persistence the service needs. store.Memory implements it.
type Store interface {
	CreateGame(g game.Game) error
	LoadGame(id string) (game.Game, error)
	LoadFleet(gameID, playerID string) (game.Fleet, error)
	LoadShots(gameID string) ([]game.Shot, error)
	LoadMatch(gameID string) (game.Game, map[string]game.Fleet, []game.Shot, error)
	CommitFleet(gameID, playerID string, fleet game.Fleet) error
	AppendShot(gameID, playerID string, target game.Coordinate) (game.Shot, error)
	UpdateGame(id string, mut func(*game.Game) error) (game.Game, error)
	ClearBoard(gameID string) error
	DeleteStale(now time.Time) (int, error)
}

// Notifier is told about every change; notify.Hub implements it.
type Notifier interface {
	Publish(ev notify.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(notify.Event) {}

type Service struct {
	store  Store
	notify Notifier
	log    zerolog.Logger

	// mu serialises every mutation so a shot and its turn change land
	// together.
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time

	manualStart bool
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notify = n } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithManualStart keeps a game in ship placement after both fleets are in
// until StartBattle is called.
func WithManualStart() Option { return func(s *Service) { s.manualStart = true } }

func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		notify: nopNotifier{},
		log:    zerolog.Nop(),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// === Setup ===

type CreateParams struct {
	Mode      game.Mode
	BoardSize int
	Quota     game.Quota
	PlayerID  string
	Name      string
}

const defaultBoardSize = 10

func (s *Service) CreateGame(p CreateParams) (game.Game, error) {
	if p.BoardSize == 0 {
		p.BoardSize = defaultBoardSize
	}
	if len(p.Quota) == 0 {
		p.Quota = game.DefaultQuota()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; ; attempt++ {
		g, err := game.NewGame(uuid.NewString()[:8], p.Mode, p.BoardSize, p.Quota, p.PlayerID, p.Name, s.now().UTC())
		if err != nil {
			return game.Game{}, err
		}
		err = s.store.CreateGame(g)
		if errors.Is(err, store.ErrExists) && attempt < 3 {
			continue
		}
		if err != nil {
			return game.Game{}, err
		}
		s.log.Info().Str("game", g.ID).Str("mode", g.Mode.String()).Int("size", g.BoardSize).Msg("game created")
		return g, nil
	}
}

func (s *Service) JoinGame(gameID, playerID, name string) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.UpdateGame(gameID, func(g *game.Game) error { return g.Join(playerID, name) })
	if err != nil {
		return game.Game{}, err
	}
	s.publishGame(g)
	return g, nil
}

// PlaceFleet validates and commits playerID's layout. Once both fleets are
// committed the battle starts with a random first shooter.
func (s *Service) PlaceFleet(gameID, playerID string, ships []game.PlacedShip) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placeFleet(gameID, playerID, ships)
}

// RandomFleet generates a valid layout for playerID and commits it.
func (s *Service) RandomFleet(gameID, playerID string) (game.Game, game.Fleet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.LoadGame(gameID)
	if err != nil {
		return game.Game{}, nil, err
	}
	ships, err := game.RandomFleet(s.rng, g.BoardSize, g.Quota)
	if err != nil {
		return game.Game{}, nil, err
	}
	g, err = s.placeFleet(gameID, playerID, ships)
	if err != nil {
		return game.Game{}, nil, err
	}
	fleet, err := s.store.LoadFleet(gameID, playerID)
	return g, fleet, err
}

func (s *Service) placeFleet(gameID, playerID string, ships []game.PlacedShip) (game.Game, error) {
	g, err := s.store.LoadGame(gameID)
	if err != nil {
		return game.Game{}, err
	}
	// seat and phase first, so a late layout is refused as a state error
	trial := g
	if err := trial.CommitFleet(playerID, ""); err != nil {
		return game.Game{}, err
	}

	fleet, err := game.ValidatePlacement(g.BoardSize, g.Quota, playerID, ships)
	if err != nil {
		return game.Game{}, err
	}
	if err := s.store.CommitFleet(gameID, playerID, fleet); err != nil {
		return game.Game{}, err
	}
	root := fleet.Root(g.BoardSize)
	g, err = s.store.UpdateGame(gameID, func(g *game.Game) error {
		if err := g.CommitFleet(playerID, root); err != nil {
			return err
		}
		if g.BothReady() && !s.manualStart {
			ids := g.PlayerIDs()
			return g.Start(game.PickStarter(s.rng, ids[0], ids[1]))
		}
		return nil
	})
	if err != nil {
		return game.Game{}, err
	}
	s.log.Info().Str("game", gameID).Str("player", playerID).Str("root", root).Msg("fleet committed")
	s.publishGame(g)
	return g, nil
}

// StartBattle opens the battle by hand; only needed with WithManualStart.
func (s *Service) StartBattle(gameID string) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.UpdateGame(gameID, func(g *game.Game) error {
		ids := g.PlayerIDs()
		return g.Start(game.PickStarter(s.rng, ids[0], ids[1]))
	})
	if err != nil {
		return game.Game{}, err
	}
	s.log.Info().Str("game", gameID).Str("starter", g.CurrentTurn).Msg("battle started")
	s.publishGame(g)
	return g, nil
}

// === Battle ===

type FireResult struct {
	Shot           game.Shot    `json:"shot"`
	Hit            bool         `json:"hit"`
	SunkShipID     string       `json:"sunkShipId,omitempty"`
	ShipsRemaining int          `json:"shipsRemaining"` // target's
	HitsRemaining  int          `json:"hitsRemaining"`  // target's
	NextTurn       string       `json:"nextTurn"`
	Verdict        game.Verdict `json:"verdict"`
	Game           game.Game    `json:"game"`
}

// Fire commits one shot by playerID, advances the turn and settles the game
// if the arbiter reaches a decision.
func (s *Service) Fire(gameID, playerID string, target game.Coordinate) (FireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.store.LoadGame(gameID)
	if err != nil {
		return FireResult{}, err
	}
	if err := g.CheckShooter(playerID); err != nil {
		return FireResult{}, err
	}
	if !target.InBounds(g.BoardSize) {
		return FireResult{}, fmt.Errorf("%w: %s", game.ErrShotOutOfBounds, target)
	}
	opp, err := g.Opponent(playerID)
	if err != nil {
		return FireResult{}, err
	}
	shots, err := s.store.LoadShots(gameID)
	if err != nil {
		return FireResult{}, err
	}
	for _, prev := range game.ShotsBy(shots, playerID) {
		if prev.Target == target {
			return FireResult{}, fmt.Errorf("%w: %s", game.ErrDuplicateShot, target)
		}
	}
	targetFleet, err := s.store.LoadFleet(gameID, opp)
	if err != nil {
		return FireResult{}, err
	}
	ownFleet, err := s.store.LoadFleet(gameID, playerID)
	if err != nil {
		return FireResult{}, err
	}

	shot, err := s.store.AppendShot(gameID, playerID, target)
	if err != nil {
		return FireResult{}, err
	}
	shots = append(shots, shot)

	struck := game.Resolve(g.BoardSize, targetFleet, game.ShotsBy(shots, playerID))
	own := game.Resolve(g.BoardSize, ownFleet, game.ShotsBy(shots, opp))
	hit := struck.IsHit(target)
	step := game.Advance(g.Mode, playerID, opp, hit, struck.HitsRemaining)

	var verdict game.Verdict
	g, err = s.store.UpdateGame(gameID, func(g *game.Game) error {
		if err := g.ApplyStep(playerID, step); err != nil {
			return err
		}
		verdict = game.Decide(g.Contender(playerID, own.HitsRemaining), g.Contender(opp, struck.HitsRemaining))
		return g.Finish(verdict)
	})
	if err != nil {
		return FireResult{}, err
	}

	res := FireResult{
		Shot:           shot,
		Hit:            hit,
		ShipsRemaining: struck.ShipsRemaining,
		HitsRemaining:  struck.HitsRemaining,
		NextTurn:       g.CurrentTurn,
		Verdict:        verdict,
		Game:           g,
	}
	if cell := struck.Board.At(target); cell.IsSunk {
		res.SunkShipID = cell.ShipID
	}

	s.log.Debug().Str("game", gameID).Str("player", playerID).Stringer("target", target).
		Bool("hit", hit).Str("next", g.CurrentTurn).Msg("shot")
	s.notify.Publish(notify.Event{Type: notify.EventShot, GameID: gameID, Shot: &shot, Turn: g.CurrentTurn, State: g.State})
	if verdict.Terminal() {
		s.log.Info().Str("game", gameID).Stringer("outcome", verdict.Outcome).Str("winner", verdict.WinnerID).Msg("game finished")
		s.publishGame(g)
	}
	return res, nil
}

// === Read side ===

type Counters struct {
	ShipsRemaining int `json:"shipsRemaining"`
	HitsRemaining  int `json:"hitsRemaining"`
}

// View is one player's picture of a game. The target board never reveals
// ship cells that have not been hit.
type View struct {
	Game         game.Game    `json:"game"`
	PlayerID     string       `json:"playerId"`
	OwnBoard     game.Board   `json:"ownBoard"`
	TargetBoard  game.Board   `json:"targetBoard"`
	Own          Counters     `json:"own"`
	Opponent     Counters     `json:"opponent"`
	OwnDigest    string       `json:"ownDigest"`
	TargetDigest string       `json:"targetDigest"`
	Verdict      game.Verdict `json:"verdict"`
	Shots        []game.Shot  `json:"shots"`
}

// View is playerID's picture of the match. It waits for any in-flight
// mutation so the game record and the shot log agree.
func (s *Service) View(gameID, playerID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, fleets, shots, err := s.store.LoadMatch(gameID)
	if err != nil {
		return View{}, err
	}
	opp, err := g.Opponent(playerID)
	if err != nil {
		return View{}, err
	}

	own := game.Resolve(g.BoardSize, fleets[playerID], game.ShotsBy(shots, opp))
	struck := game.Resolve(g.BoardSize, fleets[opp], game.ShotsBy(shots, playerID))
	target := struck.Board.Masked()

	v := View{
		Game:         g,
		PlayerID:     playerID,
		OwnBoard:     own.Board,
		TargetBoard:  target,
		Own:          Counters{ShipsRemaining: own.ShipsRemaining, HitsRemaining: own.HitsRemaining},
		Opponent:     Counters{ShipsRemaining: struck.ShipsRemaining, HitsRemaining: struck.HitsRemaining},
		OwnDigest:    own.Board.Digest(),
		TargetDigest: target.Digest(),
		Shots:        shots,
	}
	switch g.State {
	case game.StateFinished:
		v.Verdict = game.Verdict{Outcome: game.Win, WinnerID: g.WinnerID}
		if g.EndReason == game.EndTie {
			v.Verdict = game.Verdict{Outcome: game.Tie}
		}
	case game.StatePlaying:
		v.Verdict = game.Decide(g.Contender(playerID, own.HitsRemaining), g.Contender(opp, struck.HitsRemaining))
		s.checkReplay(g, fleets, shots)
	}
	return v, nil
}

// checkReplay re-derives the turn state from the shot log and logs any
// disagreement with the stored counters.
func (s *Service) checkReplay(g game.Game, fleets map[string]game.Fleet, shots []game.Shot) {
	tally, err := game.Replay(g.Mode, g.BoardSize, g.PlayerIDs(), fleets, shots)
	if err != nil {
		s.log.Warn().Err(err).Str("game", g.ID).Msg("shot log does not replay")
		return
	}
	if len(shots) == 0 {
		return
	}
	for _, seat := range g.Seats {
		if tally.Turns[seat.ID] != seat.PlayedTurns {
			s.log.Warn().Str("game", g.ID).Str("player", seat.ID).
				Int("stored", seat.PlayedTurns).Int("replayed", tally.Turns[seat.ID]).Msg("turn count drift")
		}
	}
	if tally.Current != g.CurrentTurn {
		s.log.Warn().Str("game", g.ID).Str("stored", g.CurrentTurn).Str("replayed", tally.Current).Msg("current turn drift")
	}
}

// === Rematch ===

// SetPlayAgain records a rematch vote; when both players want one the game
// restarts at ship placement.
func (s *Service) SetPlayAgain(gameID, playerID string, playAgain bool) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.UpdateGame(gameID, func(g *game.Game) error { return g.SetPlayAgain(playerID, playAgain) })
	if err != nil {
		return game.Game{}, err
	}
	if g.WantsRematch() {
		return s.restart(gameID)
	}
	s.publishGame(g)
	return g, nil
}

// Restart clears both fleets and the shot log of a finished game and zeroes
// every counter. Only a seated player may ask.
func (s *Service) Restart(gameID, playerID string) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.LoadGame(gameID)
	if err != nil {
		return game.Game{}, err
	}
	if _, err := g.SeatOf(playerID); err != nil {
		return game.Game{}, err
	}
	return s.restart(gameID)
}

func (s *Service) restart(gameID string) (game.Game, error) {
	g, err := s.store.LoadGame(gameID)
	if err != nil {
		return game.Game{}, err
	}
	if err := g.Restart(); err != nil {
		return game.Game{}, err
	}
	if err := s.store.ClearBoard(gameID); err != nil {
		return game.Game{}, err
	}
	g, err = s.store.UpdateGame(gameID, func(g *game.Game) error { return g.Restart() })
	if err != nil {
		return game.Game{}, err
	}
	s.log.Info().Str("game", gameID).Msg("game restarted")
	s.publishGame(g)
	return g, nil
}

// Cleanup drops stale games.
func (s *Service) Cleanup() (int, error) {
	n, err := s.store.DeleteStale(s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int("deleted", n).Msg("stale games removed")
	}
	return n, nil
}

func (s *Service) publishGame(g game.Game) {
	s.notify.Publish(notify.Event{Type: notify.EventGame, GameID: g.ID, State: g.State, Turn: g.CurrentTurn})
}
