package main

const (
	gridSize    = 12
	gridColumns = 4
)

// Card is one slot of a player's 3x4 grid. A nil Value marks a slot
// whose column has already been cleared.
type Card struct {
	Value    *int
	Revealed bool
}

type Grid [gridSize]Card

// cleared reports whether this slot's column has been removed.
func (c Card) cleared() bool {
	return c.Value == nil
}

// checkColumns clears every column whose three slots are all revealed
// and share the same value. All four columns are scanned on every call;
// clearing one column never short-circuits the rest. Idempotent.
func (g *Grid) checkColumns() {
	for col := 0; col < gridColumns; col++ {
		a, b, c := &g[col], &g[col+4], &g[col+8]

		if !a.Revealed || !b.Revealed || !c.Revealed {
			continue
		}
		if a.cleared() || b.cleared() || c.cleared() {
			continue
		}
		if *a.Value != *b.Value || *b.Value != *c.Value {
			continue
		}

		*a = Card{}
		*b = Card{}
		*c = Card{}
	}
}

// score sums every remaining card value, hidden or revealed. Cleared
// slots contribute nothing.
func (g *Grid) score() int {
	sum := 0
	for _, c := range g {
		if c.Value != nil {
			sum += *c.Value
		}
	}
	return sum
}

// allRevealed reports whether every slot is revealed or cleared.
func (g *Grid) allRevealed() bool {
	for _, c := range g {
		if !c.Revealed && !c.cleared() {
			return false
		}
	}
	return true
}

// revealedCount counts revealed slots, used to enforce the two-card
// limit during the initial reveal phase.
func (g *Grid) revealedCount() int {
	n := 0
	for _, c := range g {
		if c.Revealed {
			n++
		}
	}
	return n
}
