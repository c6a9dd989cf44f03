package game

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"battleship-rampage/internal/merkle"
)

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coordinate) InBounds(size int) bool {
	return c.X >= 0 && c.X < size && c.Y >= 0 && c.Y < size
}

// index flattens c row-major for a board of the given size.
func (c Coordinate) index(size int) uint {
	return uint(c.Y*size + c.X)
}

func (c Coordinate) String() string { return fmt.Sprintf("(%d, %d)", c.X, c.Y) }

// Cell is one square of a derived board overlay.
type Cell struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	IsShip bool   `json:"isShip"`
	ShipID string `json:"shipId,omitempty"`
	IsSunk bool   `json:"isSunk,omitempty"`
	IsHit  bool   `json:"isHit"`
}

// Board is a fleet with shots laid over it. Cells is indexed [y][x].
type Board struct {
	Size  int      `json:"size"`
	Cells [][]Cell `json:"cells"`
}

// NewBoard returns an empty size x size board.
func NewBoard(size int) Board {
	b := Board{Size: size, Cells: make([][]Cell, size)}
	for y := 0; y < size; y++ {
		row := make([]Cell, size)
		for x := 0; x < size; x++ {
			row[x] = Cell{X: x, Y: y}
		}
		b.Cells[y] = row
	}
	return b
}

// At returns the cell at c; c must be in bounds.
func (b Board) At(c Coordinate) Cell { return b.Cells[c.Y][c.X] }

// Cell state codes hashed by Digest.
const (
	codeWater uint8 = iota
	codeShip
	codeMiss
	codeHit
	codeSunk
)

func (c Cell) code() uint8 {
	switch {
	case c.IsShip && c.IsSunk:
		return codeSunk
	case c.IsShip && c.IsHit:
		return codeHit
	case c.IsShip:
		return codeShip
	case c.IsHit:
		return codeMiss
	default:
		return codeWater
	}
}

// Digest is a MiMC Merkle root over every cell's state. Two replicas that
// derived the same overlay get the same digest.
func (b Board) Digest() string {
	codes := make([]uint8, 0, b.Size*b.Size)
	for _, row := range b.Cells {
		for _, c := range row {
			codes = append(codes, c.code())
		}
	}
	return digestHex(codes)
}

func digestHex(codes []uint8) string {
	return fmt.Sprintf("0x%x", merkle.Digest(codes))
}

// Masked hides ship cells that have not been hit, as seen by the shooter.
func (b Board) Masked() Board {
	out := Board{Size: b.Size, Cells: make([][]Cell, len(b.Cells))}
	for y, row := range b.Cells {
		out.Cells[y] = make([]Cell, len(row))
		for x, c := range row {
			if c.IsShip && !c.IsHit {
				c = Cell{X: c.X, Y: c.Y}
			}
			out.Cells[y][x] = c
		}
	}
	return out
}

// RandomFleet places the quota's ships without overlap. Anchors and
// orientations are drawn from rng.
func RandomFleet(rng *rand.Rand, size int, q Quota) (Fleet, error) {
	taken := make(map[Coordinate]bool)
	fleet := make(Fleet, 0, len(q))
	tries := 0
	for _, t := range q.Expand() {
		for {
			if tries > 10000 {
				return nil, errors.New("failed to place ships")
			}
			tries++
			s := PlacedShip{
				Type:        t,
				Size:        t.Length(),
				Orientation: Orientation(rng.IntN(2)),
				Anchor:      Coordinate{X: rng.IntN(size), Y: rng.IntN(size)},
			}
			cells := s.Cells()
			ok := true
			for _, c := range cells {
				if !c.InBounds(size) || taken[c] {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			for _, c := range cells {
				taken[c] = true
			}
			fleet = append(fleet, s)
			break
		}
	}
	return fleet, nil
}
