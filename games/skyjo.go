// Package games holds design notes for the games served by this binary.
package games

// Each player is dealt a hidden 3x4 grid of twelve cards from a shared 150-card deck
// Card values run from -2 to 12; lower totals are better
// Before play starts, every player flips two of their cards face up
// On a turn, the current player draws from the deck or takes the top of the discard pile
// A drawn card either replaces a grid card (old card goes to the discard), or
// a deck draw may instead be discarded in exchange for flipping one hidden card
// If all three cards in a column are face up and match, the column is removed
// The first player to have every card face up (or removed) triggers the last round
// Every other player then gets exactly one more turn, and the lowest total wins

// Display formats:
// One grid of card tiles per player, with the deck and discard pile above

// Implementation details:
// - Use websockets to push the full game state to every client after each move
// - Identify players by a per-connection random ID; the server owns all rules
// - Only the drawing player ever sees the drawn card; others see pile counts

// How to play
// - One player creates the game, everyone else joins by name before it starts
// - The creator starts the game once at least two players have joined
// - Turn order is join order; the server rejects any out-of-turn command
