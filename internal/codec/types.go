package codec

import (
	"fmt"

	"battleship-rampage/internal/game"
)

type CreateGameReq struct {
	PlayerID  string     `json:"playerId"`
	Name      string     `json:"name,omitempty"`
	Mode      game.Mode  `json:"mode"`
	BoardSize int        `json:"boardSize,omitempty"`
	Quota     game.Quota `json:"quota,omitempty"` // ship type -> count
}

type JoinReq struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

type PlayerReq struct {
	PlayerID string `json:"playerId"`
}

type FleetReq struct {
	PlayerID string            `json:"playerId"`
	Ships    []game.PlacedShip `json:"ships"`
}

type ShotReq struct {
	PlayerID string `json:"playerId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

func (r ShotReq) Target() game.Coordinate { return game.Coordinate{X: r.X, Y: r.Y} }

type PlayAgainReq struct {
	PlayerID  string `json:"playerId"`
	PlayAgain bool   `json:"playAgain"`
}

type RandomFleetResp struct {
	Game  game.Game  `json:"game"`
	Fleet game.Fleet `json:"fleet"`
}

// MatchFile is a recorded match: both fleets plus the shot log. The replay
// command reads it.
type MatchFile struct {
	Mode      game.Mode             `json:"mode"`
	BoardSize int                   `json:"boardSize"`
	Players   [2]string             `json:"players"`
	Fleets    map[string]game.Fleet `json:"fleets"`
	Shots     []game.Shot           `json:"shots"`
}

type BoardSummary struct {
	ShipsRemaining int    `json:"shipsRemaining"`
	HitsRemaining  int    `json:"hitsRemaining"`
	Digest         string `json:"digest"`
}

type ReplayReport struct {
	Tally  game.Tally              `json:"tally"`
	Boards map[string]BoardSummary `json:"boards"` // keyed by fleet owner
}

// Report checks both fleets against the placement rules, resolves each one
// against the opponent's shots and replays the turn order.
func (m MatchFile) Report() (ReplayReport, error) {
	for _, p := range m.Players {
		if _, err := game.ValidatePlacement(m.BoardSize, m.Fleets[p].Counts(), p, m.Fleets[p]); err != nil {
			return ReplayReport{}, fmt.Errorf("fleet %s: %w", p, err)
		}
	}
	tally, err := game.Replay(m.Mode, m.BoardSize, m.Players, m.Fleets, m.Shots)
	if err != nil {
		return ReplayReport{}, err
	}
	rep := ReplayReport{Tally: tally, Boards: make(map[string]BoardSummary, 2)}
	for i, owner := range m.Players {
		shooter := m.Players[1-i]
		res := game.Resolve(m.BoardSize, m.Fleets[owner], game.ShotsBy(m.Shots, shooter))
		rep.Boards[owner] = BoardSummary{
			ShipsRemaining: res.ShipsRemaining,
			HitsRemaining:  res.HitsRemaining,
			Digest:         res.Board.Digest(),
		}
	}
	return rep, nil
}
