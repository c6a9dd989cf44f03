package game

import (
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateWaitingForPlayer State = "WAITING_FOR_PLAYER"
	StateShipPlacement    State = "SHIP_PLACEMENT"
	StatePlaying          State = "PLAYING"
	StateFinished         State = "FINISHED"
)

type EndReason string

const (
	EndNone EndReason = ""
	EndWin  EndReason = "WIN"
	EndTie  EndReason = "TIE"
)

// Seat is one player's slot in a game.
type Seat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ready       bool   `json:"ready"` // fleet committed
	PlayAgain   bool   `json:"playAgain"`
	PlayedTurns int    `json:"playedTurns"`
	FleetRoot   string `json:"fleetRoot,omitempty"`
}

// Game is the single persisted record of a match.
type Game struct {
	ID          string    `json:"id"`
	Mode        Mode      `json:"mode"`
	BoardSize   int       `json:"boardSize"`
	Quota       Quota     `json:"quota"`
	Seats       [2]Seat   `json:"seats"`
	State       State     `json:"state"`
	CurrentTurn string    `json:"currentTurn,omitempty"`
	EndReason   EndReason `json:"gameEndReason,omitempty"`
	WinnerID    string    `json:"winnerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewGame validates the configuration and seats the host.
func NewGame(id string, mode Mode, boardSize int, q Quota, hostID, hostName string, now time.Time) (Game, error) {
	if err := ValidateConfig(boardSize, q); err != nil {
		return Game{}, err
	}
	if hostID == "" {
		return Game{}, errors.New("player id required")
	}
	return Game{
		ID:        id,
		Mode:      mode,
		BoardSize: boardSize,
		Quota:     q,
		Seats:     [2]Seat{{ID: hostID, Name: hostName}},
		State:     StateWaitingForPlayer,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SeatOf returns the seat index of playerID.
func (g *Game) SeatOf(playerID string) (int, error) {
	if playerID != "" {
		for i := range g.Seats {
			if g.Seats[i].ID == playerID {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
}

// Opponent returns the other seated player's id.
func (g *Game) Opponent(playerID string) (string, error) {
	i, err := g.SeatOf(playerID)
	if err != nil {
		return "", err
	}
	return g.Seats[1-i].ID, nil
}

func (g *Game) PlayerIDs() [2]string { return [2]string{g.Seats[0].ID, g.Seats[1].ID} }

func (g *Game) transitionErr(action string) error {
	if g.State == StateFinished {
		return fmt.Errorf("%s: %w", action, ErrGameAlreadyFinished)
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidStateTransition, action, g.State)
}

// Join seats the second player and opens ship placement. Joining again with
// an id that is already seated only updates the name.
func (g *Game) Join(playerID, name string) error {
	if playerID == "" {
		return errors.New("player id required")
	}
	if g.State == StateFinished {
		return g.transitionErr("join")
	}
	if i, err := g.SeatOf(playerID); err == nil {
		if name != "" {
			g.Seats[i].Name = name
		}
		return nil
	}
	if g.Seats[1].ID != "" {
		return ErrGameFull
	}
	if g.State != StateWaitingForPlayer {
		return g.transitionErr("join")
	}
	g.Seats[1] = Seat{ID: playerID, Name: name}
	g.State = StateShipPlacement
	return nil
}

// CommitFleet marks playerID's fleet as placed. Re-placement before the
// battle starts is allowed.
func (g *Game) CommitFleet(playerID, fleetRoot string) error {
	i, err := g.SeatOf(playerID)
	if err != nil {
		return err
	}
	if g.State != StateShipPlacement {
		return g.transitionErr("place ships")
	}
	g.Seats[i].Ready = true
	g.Seats[i].FleetRoot = fleetRoot
	return nil
}

func (g *Game) BothReady() bool { return g.Seats[0].Ready && g.Seats[1].Ready }

// Start opens the battle with starter to shoot first.
func (g *Game) Start(starter string) error {
	if g.State != StateShipPlacement {
		return g.transitionErr("start battle")
	}
	if !g.BothReady() {
		return fmt.Errorf("%w: both fleets must be placed before battle", ErrInvalidStateTransition)
	}
	if _, err := g.SeatOf(starter); err != nil {
		return err
	}
	g.State = StatePlaying
	g.CurrentTurn = starter
	g.Seats[0].PlayAgain, g.Seats[1].PlayAgain = false, false
	return nil
}

// CheckShooter rejects a shot by anyone but the active shooter.
func (g *Game) CheckShooter(playerID string) error {
	if g.State == StateFinished {
		return ErrGameAlreadyFinished
	}
	if _, err := g.SeatOf(playerID); err != nil {
		return err
	}
	if g.State != StatePlaying {
		return g.transitionErr("fire")
	}
	if g.CurrentTurn != playerID {
		return ErrNotYourTurn
	}
	return nil
}

// ApplyStep records the turn outcome of a shot fired by shooter.
func (g *Game) ApplyStep(shooter string, step Step) error {
	i, err := g.SeatOf(shooter)
	if err != nil {
		return err
	}
	if step.TurnEnded {
		g.Seats[i].PlayedTurns++
	}
	g.CurrentTurn = step.Next
	return nil
}

// Finish closes the game when v is terminal.
func (g *Game) Finish(v Verdict) error {
	if !v.Terminal() {
		return nil
	}
	if g.State != StatePlaying {
		return g.transitionErr("finish")
	}
	g.State = StateFinished
	g.WinnerID = v.WinnerID
	if v.Outcome == Tie {
		g.EndReason = EndTie
	} else {
		g.EndReason = EndWin
	}
	return nil
}

// SetPlayAgain records a rematch vote.
func (g *Game) SetPlayAgain(playerID string, playAgain bool) error {
	i, err := g.SeatOf(playerID)
	if err != nil {
		return err
	}
	if g.State != StateFinished {
		return fmt.Errorf("%w: rematch only after the game is finished", ErrInvalidStateTransition)
	}
	g.Seats[i].PlayAgain = playAgain
	return nil
}

func (g *Game) WantsRematch() bool { return g.Seats[0].PlayAgain && g.Seats[1].PlayAgain }

// Restart returns a finished game to ship placement and zeroes every
// counter. Fleets and shots must be cleared by the caller.
func (g *Game) Restart() error {
	if g.State != StateFinished {
		return fmt.Errorf("%w: cannot restart while %s", ErrInvalidStateTransition, g.State)
	}
	g.State = StateShipPlacement
	g.CurrentTurn = ""
	g.EndReason = EndNone
	g.WinnerID = ""
	for i := range g.Seats {
		g.Seats[i].Ready = false
		g.Seats[i].PlayAgain = false
		g.Seats[i].PlayedTurns = 0
		g.Seats[i].FleetRoot = ""
	}
	return nil
}

// Contender builds the arbiter's view of playerID given the unhit cells left
// in that player's fleet.
func (g *Game) Contender(playerID string, hitsRemaining int) Contender {
	c := Contender{PlayerID: playerID, HitsRemaining: hitsRemaining}
	if i, err := g.SeatOf(playerID); err == nil {
		c.TurnsPlayed = g.Seats[i].PlayedTurns
	}
	return c
}
