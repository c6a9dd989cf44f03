package game

import (
	"time"

	"github.com/bits-and-blooms/bitset"
)

// Shot is one fired coordinate. Seq is the game-wide creation order.
type Shot struct {
	Seq       int64      `json:"seq"`
	PlayerID  string     `json:"playerId"`
	Target    Coordinate `json:"target"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ShotsBy filters the log down to one player's shots, keeping order.
func ShotsBy(shots []Shot, playerID string) []Shot {
	out := make([]Shot, 0, len(shots)/2+1)
	for _, s := range shots {
		if s.PlayerID == playerID {
			out = append(out, s)
		}
	}
	return out
}

// Resolution is the derived state of one fleet under fire.
type Resolution struct {
	Board          Board           `json:"board"`
	ShipsRemaining int             `json:"shipsRemaining"`
	HitsRemaining  int             `json:"hitsRemaining"`
	Sunk           map[string]bool `json:"sunk"`
}

// IsHit reports whether c holds a ship cell that has been shot.
func (r Resolution) IsHit(c Coordinate) bool {
	if !c.InBounds(r.Board.Size) {
		return false
	}
	cell := r.Board.At(c)
	return cell.IsShip && cell.IsHit
}

// Resolve lays shots over fleet. The result depends only on the set of
// shots, never on their order; shots outside the board are ignored.
func Resolve(boardSize int, fleet Fleet, shots []Shot) Resolution {
	n := uint(boardSize * boardSize)
	hits := bitset.New(n)
	for _, s := range shots {
		if s.Target.InBounds(boardSize) {
			hits.Set(s.Target.index(boardSize))
		}
	}

	board := NewBoard(boardSize)
	for y := 0; y < boardSize; y++ {
		for x := 0; x < boardSize; x++ {
			board.Cells[y][x].IsHit = hits.Test(Coordinate{X: x, Y: y}.index(boardSize))
		}
	}

	res := Resolution{Board: board, Sunk: make(map[string]bool, len(fleet))}
	for _, ship := range fleet {
		cells := ship.Cells()
		hit := 0
		for _, c := range cells {
			if !c.InBounds(boardSize) {
				continue
			}
			if hits.Test(c.index(boardSize)) {
				hit++
			}
		}
		sunk := hit == len(cells)
		for _, c := range cells {
			if !c.InBounds(boardSize) {
				continue
			}
			cell := &board.Cells[c.Y][c.X]
			cell.IsShip = true
			cell.ShipID = ship.ID
			cell.IsSunk = sunk
		}
		res.Sunk[ship.ID] = sunk
		res.HitsRemaining += len(cells) - hit
		if !sunk {
			res.ShipsRemaining++
		}
	}
	return res
}
