package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, players int) *GameState {
	t.Helper()

	g := newGameState()
	for i := 0; i < players; i++ {
		_, err := g.join(fmt.Sprintf("conn-%d", i), fmt.Sprintf("Player %d", i))
		require.NoError(t, err)
	}

	return g
}

// beginPlay starts the game and has every player reveal slots 0 and 1,
// which sit in different columns and can never complete one.
func beginPlay(t *testing.T, g *GameState) {
	t.Helper()

	require.True(t, g.start())
	require.Equal(t, PhaseInitial, g.Phase)

	for _, p := range g.Players {
		require.True(t, g.revealInitial(p.ID, 0))
		require.True(t, g.revealInitial(p.ID, 1))
	}

	require.Equal(t, PhasePlaying, g.Phase)
}

func TestNewGameState(t *testing.T) {
	g := newGameState()

	assert.Empty(t, g.Players)
	assert.Len(t, g.Deck, deckSize-1)
	assert.Len(t, g.Discard, 1)
	assert.Equal(t, PhaseWaiting, g.Phase)
	assert.Equal(t, TurnActionNone, g.TurnAction)
	assert.False(t, g.Started)
	assert.False(t, g.LastRoundTriggered)
}

func TestJoinDealsTwelveCards(t *testing.T) {
	g := newGameState()
	reserved := append([]int(nil), g.Deck[:gridSize]...)

	p, err := g.join("conn-0", "Ann")
	require.NoError(t, err)

	assert.Len(t, g.Deck, deckSize-1-gridSize)
	for i, c := range p.Grid {
		require.NotNil(t, c.Value)
		assert.Equal(t, reserved[i], *c.Value)
		assert.False(t, c.Revealed)
	}
}

func TestJoinRejectedOnceStarted(t *testing.T) {
	g := newTestGame(t, 2)
	require.True(t, g.start())

	_, err := g.join("conn-9", "Late")
	assert.ErrorIs(t, err, errGameUnavailable)
	assert.Len(t, g.Players, 2)
}

func TestJoinCapacity(t *testing.T) {
	g := newTestGame(t, maxPlayers)

	_, err := g.join("conn-extra", "Extra")
	assert.ErrorIs(t, err, errGameFull)
	assert.Len(t, g.Players, maxPlayers)
}

func TestJoinRejectedOnShortDeck(t *testing.T) {
	g := newGameState()
	g.Deck = g.Deck[:gridSize-1]

	_, err := g.join("conn-0", "Ann")
	assert.ErrorIs(t, err, errGameFull)
	assert.Empty(t, g.Players)
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	g := newTestGame(t, 1)
	assert.False(t, g.start())
	assert.Equal(t, PhaseWaiting, g.Phase)

	_, err := g.join("conn-1", "Ben")
	require.NoError(t, err)
	assert.True(t, g.start())
	assert.Equal(t, PhaseInitial, g.Phase)
	assert.True(t, g.Started)

	// start is one-way; calling it again is a no-op.
	assert.False(t, g.start())
}

func TestRevealInitialLimits(t *testing.T) {
	g := newTestGame(t, 2)
	require.True(t, g.start())
	p := g.Players[0]

	assert.False(t, g.revealInitial(p.ID, -1))
	assert.False(t, g.revealInitial(p.ID, gridSize))
	assert.False(t, g.revealInitial("conn-unknown", 0))

	assert.True(t, g.revealInitial(p.ID, 0))
	assert.False(t, g.revealInitial(p.ID, 0), "re-revealing the same slot")
	assert.True(t, g.revealInitial(p.ID, 1))
	assert.False(t, g.revealInitial(p.ID, 2), "third reveal")
	assert.Equal(t, 2, p.Grid.revealedCount())

	// Only one player is ready, so play has not begun.
	assert.Equal(t, PhaseInitial, g.Phase)

	other := g.Players[1]
	require.True(t, g.revealInitial(other.ID, 3))
	require.True(t, g.revealInitial(other.ID, 4))
	assert.Equal(t, PhasePlaying, g.Phase)
}

func TestRevealInitialOnlyDuringInitialPhase(t *testing.T) {
	g := newTestGame(t, 2)
	p := g.Players[0]

	// Flips before the game starts must not count, or the reveal phase
	// could begin already satisfied and then never hand over to play.
	assert.False(t, g.revealInitial(p.ID, 0))
	assert.False(t, g.revealInitial(g.Players[1].ID, 0))
	assert.Zero(t, p.Grid.revealedCount())

	require.True(t, g.start())
	for _, p := range g.Players {
		require.True(t, g.revealInitial(p.ID, 0))
		require.True(t, g.revealInitial(p.ID, 1))
	}
	assert.Equal(t, PhasePlaying, g.Phase)

	// No free flips during play, even for a player whose revealed
	// count dropped below two after a column clear.
	p.Grid[0] = Card{}
	p.Grid[1] = Card{}
	require.Less(t, p.Grid.revealedCount(), 2)
	assert.False(t, g.revealInitial(p.ID, 2))
	assert.False(t, p.Grid[2].Revealed)
}

func TestDrawRejectsWrongTurn(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)

	deckLen, discardLen := len(g.Deck), len(g.Discard)

	_, ok := g.draw(g.Players[1].ID, false)
	assert.False(t, ok)
	assert.Len(t, g.Deck, deckLen)
	assert.Len(t, g.Discard, discardLen)
	assert.Equal(t, TurnActionNone, g.TurnAction)
}

func TestDrawPendingGuard(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]

	_, ok := g.draw(p.ID, false)
	require.True(t, ok)
	assert.Equal(t, DrewFromDeck, g.TurnAction)

	_, ok = g.draw(p.ID, false)
	assert.False(t, ok, "second draw with one pending")
	_, ok = g.draw(p.ID, true)
	assert.False(t, ok)
}

func TestDrawFromEmptyPiles(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]

	g.Discard = nil
	_, ok := g.draw(p.ID, true)
	assert.False(t, ok)

	g.Deck = nil
	_, ok = g.draw(p.ID, false)
	assert.False(t, ok)
	assert.Equal(t, TurnActionNone, g.TurnAction)
}

func TestReplaceResolvesTurn(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]
	oldValue := *p.Grid[2].Value

	// No pending draw yet, so a replace is rejected.
	assert.False(t, g.replace(p.ID, 2))

	drawn, ok := g.draw(p.ID, false)
	require.True(t, ok)
	require.True(t, g.replace(p.ID, 2))

	require.NotNil(t, p.Grid[2].Value)
	assert.Equal(t, drawn, *p.Grid[2].Value)
	assert.True(t, p.Grid[2].Revealed)
	assert.Equal(t, oldValue, g.Discard[len(g.Discard)-1])
	assert.Equal(t, 1, g.CurrentPlayer)
	assert.Equal(t, TurnActionNone, g.TurnAction)
}

func TestReplaceAfterDiscardDraw(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]

	drawn, ok := g.draw(p.ID, true)
	require.True(t, ok)
	assert.Equal(t, DrewFromDiscard, g.TurnAction)

	// A discard-pile draw must be played, never thrown back.
	assert.False(t, g.discardDrawn(p.ID, 2))

	require.True(t, g.replace(p.ID, 2))
	assert.Equal(t, drawn, *p.Grid[2].Value)
	assert.Equal(t, 1, g.CurrentPlayer)
}

func TestDiscardDrawnFlipsHiddenCard(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]

	drawn, ok := g.draw(p.ID, false)
	require.True(t, ok)

	// The flip target must be a hidden slot.
	assert.False(t, g.discardDrawn(p.ID, 0), "slot already revealed")

	require.True(t, g.discardDrawn(p.ID, 2))
	assert.True(t, p.Grid[2].Revealed)
	assert.Equal(t, drawn, g.Discard[len(g.Discard)-1])
	assert.Equal(t, 1, g.CurrentPlayer)
	assert.Equal(t, TurnActionNone, g.TurnAction)
}

func TestReplaceClearsCompletedColumn(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p := g.Players[0]

	p.Grid[0] = mkCard(7, true)
	p.Grid[4] = mkCard(7, true)
	g.Deck[len(g.Deck)-1] = 7

	drawn, ok := g.draw(p.ID, false)
	require.True(t, ok)
	require.Equal(t, 7, drawn)

	require.True(t, g.replace(p.ID, 8))

	for _, i := range []int{0, 4, 8} {
		assert.True(t, p.Grid[i].cleared(), "slot %d", i)
		assert.False(t, p.Grid[i].Revealed, "slot %d", i)
	}

	// A cleared slot can no longer be targeted.
	g.CurrentPlayer = 0
	_, ok = g.draw(p.ID, false)
	require.True(t, ok)
	assert.False(t, g.replace(p.ID, 0))
	assert.False(t, g.discardDrawn(p.ID, 4))
}

func TestTurnRotation(t *testing.T) {
	g := newTestGame(t, 3)
	beginPlay(t, g)

	flips := map[string]int{}

	for turn := 0; turn < 5; turn++ {
		assert.Equal(t, turn%3, g.CurrentPlayer)

		p := g.Players[g.CurrentPlayer]
		_, ok := g.draw(p.ID, false)
		require.True(t, ok)

		idx := 2 + flips[p.ID]
		flips[p.ID]++
		require.True(t, g.discardDrawn(p.ID, idx))
	}

	assert.Equal(t, 5%3, g.CurrentPlayer)
}

func TestLastRoundTermination(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)
	p0, p1 := g.Players[0], g.Players[1]

	for i := range p0.Grid {
		if i != 2 {
			p0.Grid[i].Revealed = true
		}
	}

	_, ok := g.draw(p0.ID, false)
	require.True(t, ok)
	require.True(t, g.replace(p0.ID, 2))

	assert.True(t, g.LastRoundTriggered)
	assert.Equal(t, p0.ID, g.LastRoundTriggeredBy)
	assert.True(t, p0.HasPlayedLastRound)
	assert.False(t, p1.HasPlayedLastRound)
	assert.Equal(t, PhasePlaying, g.Phase, "other players still get a final turn")

	_, ok = g.draw(p1.ID, false)
	require.True(t, ok)
	require.True(t, g.replace(p1.ID, 3))

	assert.True(t, p1.HasPlayedLastRound)
	assert.Equal(t, PhaseFinished, g.Phase)
	assert.Equal(t, p0.ID, g.LastRoundTriggeredBy, "trigger never changes")

	// The finished phase never reverts.
	_, ok = g.draw(g.Players[g.CurrentPlayer].ID, false)
	assert.False(t, ok)
	assert.Equal(t, PhaseFinished, g.Phase)
}

func TestCardConservation(t *testing.T) {
	g := newTestGame(t, 2)
	beginPlay(t, g)

	count := func() int {
		total := len(g.Deck) + len(g.Discard)
		if g.TurnAction != TurnActionNone {
			total++
		}
		for _, p := range g.Players {
			for _, c := range p.Grid {
				if !c.cleared() {
					total++
				}
			}
		}
		return total
	}

	require.Equal(t, deckSize, count())

	p := g.Players[0]
	_, ok := g.draw(p.ID, false)
	require.True(t, ok)
	assert.Equal(t, deckSize, count())

	// Flipping slot 2 touches three distinct columns, so no column can
	// complete and no cards leave play.
	require.True(t, g.discardDrawn(p.ID, 2))
	assert.Equal(t, deckSize, count())
}

func TestRemovePlayerRepairsTurnIndex(t *testing.T) {
	g := newTestGame(t, 3)
	beginPlay(t, g)

	// Removing a player seated before the current one shifts the index.
	g.CurrentPlayer = 2
	keep := g.Players[2]
	require.True(t, g.removePlayer(g.Players[0].ID))
	assert.Equal(t, 1, g.CurrentPlayer)
	assert.Same(t, keep, g.Players[g.CurrentPlayer])
}

func TestRemoveCurrentPlayerReturnsPendingDraw(t *testing.T) {
	g := newTestGame(t, 3)
	beginPlay(t, g)
	p0 := g.Players[0]

	drawn, ok := g.draw(p0.ID, false)
	require.True(t, ok)

	next := g.Players[1]
	require.True(t, g.removePlayer(p0.ID))

	assert.Equal(t, TurnActionNone, g.TurnAction)
	assert.Equal(t, drawn, g.Discard[len(g.Discard)-1])
	assert.Same(t, next, g.Players[g.CurrentPlayer])
}

func TestRemoveLastSeatedCurrentPlayerWraps(t *testing.T) {
	g := newTestGame(t, 3)
	beginPlay(t, g)

	g.CurrentPlayer = 2
	require.True(t, g.removePlayer(g.Players[2].ID))
	assert.Equal(t, 0, g.CurrentPlayer)
}

func TestRemovePlayerCompletesPhases(t *testing.T) {
	g := newTestGame(t, 3)
	require.True(t, g.start())

	// Two players are ready; the third never revealed anything.
	for _, p := range g.Players[:2] {
		require.True(t, g.revealInitial(p.ID, 0))
		require.True(t, g.revealInitial(p.ID, 1))
	}
	require.Equal(t, PhaseInitial, g.Phase)

	require.True(t, g.removePlayer(g.Players[2].ID))
	assert.Equal(t, PhasePlaying, g.Phase)

	// Likewise, the departure of the only player yet to take their
	// final turn ends the game.
	g.LastRoundTriggered = true
	g.Players[0].HasPlayedLastRound = true
	require.True(t, g.removePlayer(g.Players[1].ID))
	assert.Equal(t, PhaseFinished, g.Phase)
}

func TestRemoveUnknownPlayer(t *testing.T) {
	g := newTestGame(t, 2)
	assert.False(t, g.removePlayer("conn-unknown"))
	assert.Len(t, g.Players, 2)
}
