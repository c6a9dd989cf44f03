package game

import "fmt"

type ShipType int

const (
	ShipUndefined ShipType = iota
	Carrier
	Battleship
	Cruiser
	Submarine
	Destroyer
)

// ShipTypes lists the placeable types, largest first.
var ShipTypes = []ShipType{Carrier, Battleship, Cruiser, Submarine, Destroyer}

func (t ShipType) String() string {
	switch t {
	case Carrier:
		return "carrier"
	case Battleship:
		return "battleship"
	case Cruiser:
		return "cruiser"
	case Submarine:
		return "submarine"
	case Destroyer:
		return "destroyer"
	default:
		return "unknown"
	}
}

func (t ShipType) IsValid() bool {
	return t >= Carrier && t <= Destroyer
}

// Length is the canonical number of cells a ship of this type occupies.
func (t ShipType) Length() int {
	switch t {
	case Carrier:
		return 5
	case Battleship:
		return 4
	case Cruiser, Submarine:
		return 3
	case Destroyer:
		return 2
	default:
		return 0
	}
}

func ParseShipType(s string) (ShipType, error) {
	for _, t := range ShipTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return ShipUndefined, fmt.Errorf("unknown ship type %q", s)
}

func (t ShipType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid ship type: %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ShipType) UnmarshalText(b []byte) error {
	v, err := ParseShipType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "unknown"
	}
}

func (o Orientation) MarshalText() ([]byte, error) {
	if o != Horizontal && o != Vertical {
		return nil, fmt.Errorf("invalid orientation: %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "horizontal":
		*o = Horizontal
	case "vertical":
		*o = Vertical
	default:
		return fmt.Errorf("unknown orientation %q", string(b))
	}
	return nil
}

// PlacedShip is one ship of a fleet. A ship with an empty ID is a catalogue
// entry that has not been committed yet.
type PlacedShip struct {
	ID          string      `json:"id,omitempty"`
	PlayerID    string      `json:"playerId,omitempty"`
	Type        ShipType    `json:"shipType"`
	Size        int         `json:"size,omitempty"`
	Orientation Orientation `json:"orientation"`
	Anchor      Coordinate  `json:"coordinates"`
}

func (s PlacedShip) IsPlaced() bool { return s.ID != "" }

// Length returns the explicit Size when set, else the canonical length.
func (s PlacedShip) Length() int {
	if s.Size > 0 {
		return s.Size
	}
	return s.Type.Length()
}

// Cells returns the occupied coordinates starting at the anchor.
func (s PlacedShip) Cells() []Coordinate {
	n := s.Length()
	out := make([]Coordinate, n)
	for i := 0; i < n; i++ {
		if s.Orientation == Horizontal {
			out[i] = Coordinate{X: s.Anchor.X + i, Y: s.Anchor.Y}
		} else {
			out[i] = Coordinate{X: s.Anchor.X, Y: s.Anchor.Y + i}
		}
	}
	return out
}

func (s PlacedShip) String() string {
	return fmt.Sprintf("%s at %s %s", s.Type, s.Anchor, s.Orientation)
}

// Fleet is the full set of one player's placed ships.
type Fleet []PlacedShip

// Area is the number of ship cells in the fleet.
func (f Fleet) Area() int {
	n := 0
	for _, s := range f {
		n += s.Length()
	}
	return n
}

// Counts tallies ships per type.
func (f Fleet) Counts() Quota {
	q := make(Quota, len(ShipTypes))
	for _, s := range f {
		q[s.Type]++
	}
	return q
}

// Quota is the number of ships of each type a fleet must contain.
type Quota map[ShipType]int

type shipLimit struct{ Min, Max int }

var shipLimits = map[ShipType]shipLimit{
	Carrier:    {0, 2},
	Battleship: {0, 4},
	Cruiser:    {0, 4},
	Submarine:  {0, 4},
	Destroyer:  {0, 4},
}

const (
	MinBoardSize = 5
	MaxBoardSize = 10

	maxShipDensity = 0.5
)

// DefaultQuota is the classic five-ship fleet.
func DefaultQuota() Quota {
	return Quota{Carrier: 1, Battleship: 1, Cruiser: 1, Submarine: 1, Destroyer: 1}
}

// Area is the total number of cells the quota's ships cover.
func (q Quota) Area() int {
	n := 0
	for t, c := range q {
		n += t.Length() * c
	}
	return n
}

// Equal reports whether both quotas ask for the same ship counts. Zero
// entries and missing entries are equivalent.
func (q Quota) Equal(o Quota) bool {
	for _, t := range ShipTypes {
		if q[t] != o[t] {
			return false
		}
	}
	return true
}

// Expand lists one ship type per ship, largest first.
func (q Quota) Expand() []ShipType {
	out := make([]ShipType, 0, 8)
	for _, t := range ShipTypes {
		for i := 0; i < q[t]; i++ {
			out = append(out, t)
		}
	}
	return out
}

// ValidateConfig checks board size and quota at game creation.
func ValidateConfig(boardSize int, q Quota) error {
	if boardSize < MinBoardSize || boardSize > MaxBoardSize {
		return fmt.Errorf("%w: board size %d not in [%d, %d]", ErrInvalidConfig, boardSize, MinBoardSize, MaxBoardSize)
	}
	for t, c := range q {
		lim, ok := shipLimits[t]
		if !ok {
			return fmt.Errorf("%w: unknown ship type %d", ErrInvalidConfig, int(t))
		}
		if c < lim.Min || c > lim.Max {
			return fmt.Errorf("%w: %d %ss not in [%d, %d]", ErrInvalidConfig, c, t, lim.Min, lim.Max)
		}
	}
	area := q.Area()
	if area < 2 {
		return fmt.Errorf("%w: select at least one ship", ErrInvalidConfig)
	}
	if float64(area)/float64(boardSize*boardSize) > maxShipDensity {
		return fmt.Errorf("%w: ship area %d too high for a %dx%d board", ErrInvalidConfig, area, boardSize, boardSize)
	}
	return nil
}
