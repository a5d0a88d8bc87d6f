package main

import (
	"math/rand/v2"
)

// deckSize is the full Skyjo pool: 5 of each value from -2 through 12,
// except -1 (10 copies) and 0 (15 copies).
const deckSize = 150

// newDeck returns the full shuffled card pool. Deck and discard are
// treated as stacks throughout: draws and discards operate on the tail,
// join-time deals consume the head.
func newDeck() []int {
	deck := make([]int, 0, deckSize)

	for v := -2; v <= 12; v++ {
		count := 5
		switch v {
		case -1:
			count = 10
		case 0:
			count = 15
		}
		for i := 0; i < count; i++ {
			deck = append(deck, v)
		}
	}

	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck
}
