package game

import (
	"errors"
	"fmt"
)

// Rejections of a proposed action. None of them mutate state.
var (
	ErrPlacementInvalid       = errors.New("placement invalid")
	ErrNotYourTurn            = errors.New("not your turn")
	ErrDuplicateShot          = errors.New("cell already targeted")
	ErrGameAlreadyFinished    = errors.New("game is over")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidConfig          = errors.New("invalid game configuration")
	ErrShotOutOfBounds        = errors.New("shot out of bounds")
	ErrUnknownPlayer          = errors.New("player is not part of this game")
	ErrGameFull               = errors.New("game already has two players")
)

// PlacementRule names the placement check that failed.
type PlacementRule string

const (
	RuleLength  PlacementRule = "length"
	RuleBounds  PlacementRule = "bounds"
	RuleOverlap PlacementRule = "overlap"
	RuleQuota   PlacementRule = "quota"
)

// PlacementError reports which rule rejected a fleet and where.
type PlacementError struct {
	Rule   PlacementRule
	Index  int // offending ship, -1 for fleet-wide rules
	Cell   Coordinate
	Detail string
}

func (e *PlacementError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrPlacementInvalid, e.Rule, e.Detail)
	}
	return fmt.Sprintf("%s: %s: ship %d: %s", ErrPlacementInvalid, e.Rule, e.Index, e.Detail)
}

func (e *PlacementError) Is(target error) bool { return target == ErrPlacementInvalid }
