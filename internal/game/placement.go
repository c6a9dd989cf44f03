package game

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

// ValidatePlacement checks a candidate fleet for one player and returns the
// committed fleet. Placement is all-or-nothing: on error nothing is returned.
//
// Rules are checked in order: ship length, board bounds, overlap, quota.
func ValidatePlacement(boardSize int, quota Quota, playerID string, ships []PlacedShip) (Fleet, error) {
	for i, s := range ships {
		if !s.Type.IsValid() {
			return nil, &PlacementError{Rule: RuleLength, Index: i, Cell: s.Anchor,
				Detail: fmt.Sprintf("unknown ship type %d", int(s.Type))}
		}
		if s.Size != 0 && s.Size != s.Type.Length() {
			return nil, &PlacementError{Rule: RuleLength, Index: i, Cell: s.Anchor,
				Detail: fmt.Sprintf("%s must be %d cells, got %d", s.Type, s.Type.Length(), s.Size)}
		}
	}

	for i, s := range ships {
		for _, c := range s.Cells() {
			if !c.InBounds(boardSize) {
				return nil, &PlacementError{Rule: RuleBounds, Index: i, Cell: c,
					Detail: fmt.Sprintf("cell %s outside %dx%d board", c, boardSize, boardSize)}
			}
		}
	}

	occupied := bitset.New(uint(boardSize * boardSize))
	for i, s := range ships {
		for _, c := range s.Cells() {
			idx := c.index(boardSize)
			if occupied.Test(idx) {
				return nil, &PlacementError{Rule: RuleOverlap, Index: i, Cell: c,
					Detail: fmt.Sprintf("duplicated coordinate: %s", c)}
			}
			occupied.Set(idx)
		}
	}

	counts := Fleet(ships).Counts()
	if !counts.Equal(quota) {
		for _, t := range ShipTypes {
			if counts[t] != quota[t] {
				return nil, &PlacementError{Rule: RuleQuota, Index: -1,
					Detail: fmt.Sprintf("want %d %s, have %d", quota[t], t, counts[t])}
			}
		}
	}

	fleet := make(Fleet, len(ships))
	for i, s := range ships {
		s.ID = uuid.NewString()
		s.PlayerID = playerID
		s.Size = s.Type.Length()
		fleet[i] = s
	}
	return fleet, nil
}

// Root commits to the fleet's occupancy bitmap on a board of the given size.
// It changes whenever any ship moves.
func (f Fleet) Root(boardSize int) string {
	bits := make([]uint8, boardSize*boardSize)
	for _, s := range f {
		for _, c := range s.Cells() {
			if c.InBounds(boardSize) {
				bits[c.index(boardSize)] = 1
			}
		}
	}
	return digestHex(bits)
}
