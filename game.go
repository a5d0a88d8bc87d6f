package main

import (
	"errors"
)

// Phase is the game lifecycle stage. Transitions run one way:
// waiting → initial → playing → finished. Creating a new game replaces
// the state wholesale from any phase.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseInitial  Phase = "initial"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// TurnAction tracks an outstanding draw that has not been resolved yet.
// Only one draw may be pending at a time.
type TurnAction string

const (
	TurnActionNone  TurnAction = ""
	DrewFromDeck    TurnAction = "drew_from_deck"
	DrewFromDiscard TurnAction = "drew_from_discard"
)

// maxPlayers caps the roster well inside what the 150-card pool can
// deal at 12 cards per player.
const maxPlayers = 8

var (
	errGameUnavailable = errors.New("unable to join: no game is waiting for players")
	errGameFull        = errors.New("unable to join: the game is full")
)

// Player is one seat at the table. Roster order defines turn order.
type Player struct {
	ID                 string
	Name               string
	Grid               Grid
	HasPlayedLastRound bool
}

// GameState is the single authoritative game instance. It is owned by
// the hub and only ever touched from the hub's run loop, so it carries
// no locking of its own.
type GameState struct {
	Players       []*Player
	Deck          []int
	Discard       []int
	CurrentPlayer int
	Phase         Phase
	TurnAction    TurnAction
	PendingCard   int
	Started       bool

	LastRoundTriggered   bool
	LastRoundTriggeredBy string

	// PlayersFinished is reserved bookkeeping; nothing reads it yet.
	PlayersFinished []string
}

// newGameState builds a fresh shuffled deck and flips its top card to
// start the discard pile.
func newGameState() *GameState {
	deck := newDeck()
	top := deck[len(deck)-1]

	return &GameState{
		Players:         []*Player{},
		Deck:            deck[:len(deck)-1],
		Discard:         []int{top},
		Phase:           PhaseWaiting,
		PlayersFinished: []string{},
	}
}

func (g *GameState) findPlayer(id string) (int, *Player) {
	for i, p := range g.Players {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (g *GameState) isCurrent(id string) bool {
	if g.CurrentPlayer < 0 || g.CurrentPlayer >= len(g.Players) {
		return false
	}
	return g.Players[g.CurrentPlayer].ID == id
}

// join deals the next 12 cards off the head of the deck into a new
// hidden grid and seats the player at the end of the turn order.
func (g *GameState) join(id, name string) (*Player, error) {
	if g.Started {
		return nil, errGameUnavailable
	}
	if len(g.Players) >= maxPlayers || len(g.Deck) < gridSize {
		return nil, errGameFull
	}

	p := &Player{
		ID:   id,
		Name: name,
	}
	for i := 0; i < gridSize; i++ {
		v := g.Deck[i]
		p.Grid[i] = Card{Value: &v}
	}
	g.Deck = g.Deck[gridSize:]
	g.Players = append(g.Players, p)

	return p, nil
}

// start moves the game into the initial reveal phase. Requires at
// least two seated players and a game still waiting.
func (g *GameState) start() bool {
	if g.Phase != PhaseWaiting || len(g.Players) < 2 {
		return false
	}

	g.Phase = PhaseInitial
	g.Started = true

	return true
}

// revealInitial turns over one of the acting player's starting cards
// during the initial phase only. Each player reveals exactly two; once
// everyone has, play begins.
func (g *GameState) revealInitial(id string, idx int) bool {
	if g.Phase != PhaseInitial {
		return false
	}

	_, p := g.findPlayer(id)
	if p == nil {
		return false
	}
	if idx < 0 || idx >= gridSize {
		return false
	}
	if p.Grid.revealedCount() >= 2 || p.Grid[idx].Revealed {
		return false
	}

	p.Grid[idx].Revealed = true
	g.maybeBeginPlay()

	return true
}

// maybeBeginPlay transitions initial → playing once every player has
// revealed at least two cards.
func (g *GameState) maybeBeginPlay() {
	if g.Phase != PhaseInitial {
		return
	}
	for _, p := range g.Players {
		if p.Grid.revealedCount() < 2 {
			return
		}
	}
	g.Phase = PhasePlaying
}

// draw pops a card off the deck or the discard pile for the current
// player. The drawn value is remembered server-side until the player
// resolves it with replace or discardDrawn, and is returned so the
// gateway can reveal it to the acting client only.
func (g *GameState) draw(id string, fromDiscard bool) (int, bool) {
	if g.Phase != PhasePlaying || !g.isCurrent(id) || g.TurnAction != TurnActionNone {
		return 0, false
	}

	if fromDiscard {
		if len(g.Discard) == 0 {
			return 0, false
		}
		g.PendingCard = g.Discard[len(g.Discard)-1]
		g.Discard = g.Discard[:len(g.Discard)-1]
		g.TurnAction = DrewFromDiscard
	} else {
		if len(g.Deck) == 0 {
			return 0, false
		}
		g.PendingCard = g.Deck[len(g.Deck)-1]
		g.Deck = g.Deck[:len(g.Deck)-1]
		g.TurnAction = DrewFromDeck
	}

	return g.PendingCard, true
}

// replace swaps the drawn card into a grid slot, revealed, and pushes
// the old value onto the discard pile. Cleared slots cannot be refilled.
func (g *GameState) replace(id string, idx int) bool {
	if g.Phase != PhasePlaying || !g.isCurrent(id) || g.TurnAction == TurnActionNone {
		return false
	}
	if idx < 0 || idx >= gridSize {
		return false
	}

	p := g.Players[g.CurrentPlayer]
	if p.Grid[idx].cleared() {
		return false
	}

	old := *p.Grid[idx].Value
	v := g.PendingCard
	p.Grid[idx] = Card{Value: &v, Revealed: true}
	g.Discard = append(g.Discard, old)

	p.Grid.checkColumns()
	g.endTurn(p)

	return true
}

// discardDrawn throws away a card drawn from the deck and uncovers a
// hidden grid slot instead. A card taken from the discard pile must be
// played, so this is only legal after a deck draw.
func (g *GameState) discardDrawn(id string, idx int) bool {
	if g.Phase != PhasePlaying || !g.isCurrent(id) || g.TurnAction != DrewFromDeck {
		return false
	}
	if idx < 0 || idx >= gridSize {
		return false
	}

	p := g.Players[g.CurrentPlayer]
	if p.Grid[idx].Revealed || p.Grid[idx].cleared() {
		return false
	}

	p.Grid[idx].Revealed = true
	g.Discard = append(g.Discard, g.PendingCard)

	p.Grid.checkColumns()
	g.endTurn(p)

	return true
}

// endTurn runs the shared end-of-turn sequence: latch the last round if
// the acting player just finished their grid, mark last-round turns as
// played, rotate to the next player, clear the pending draw, and finish
// the game once everyone has had their final turn.
func (g *GameState) endTurn(p *Player) {
	if p.Grid.allRevealed() && !g.LastRoundTriggered {
		g.LastRoundTriggered = true
		g.LastRoundTriggeredBy = p.ID
	}
	if g.LastRoundTriggered {
		p.HasPlayedLastRound = true
	}

	g.CurrentPlayer = (g.CurrentPlayer + 1) % len(g.Players)
	g.TurnAction = TurnActionNone
	g.PendingCard = 0

	g.maybeFinish()
}

// maybeFinish latches the finished phase once the last round has gone
// all the way around.
func (g *GameState) maybeFinish() {
	if !g.LastRoundTriggered || g.Phase != PhasePlaying {
		return
	}
	for _, p := range g.Players {
		if !p.HasPlayedLastRound {
			return
		}
	}
	g.Phase = PhaseFinished
}

// removePlayer drops a seat from the roster and repairs the turn index
// so the natural successor keeps the turn. A pending draw held by the
// departing player goes back onto the discard pile. Returns false if
// the id is unknown.
func (g *GameState) removePlayer(id string) bool {
	idx, _ := g.findPlayer(id)
	if idx == -1 {
		return false
	}

	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)
	if len(g.Players) == 0 {
		return true
	}

	switch {
	case idx < g.CurrentPlayer:
		g.CurrentPlayer--
	case idx == g.CurrentPlayer:
		if g.TurnAction != TurnActionNone {
			g.Discard = append(g.Discard, g.PendingCard)
			g.TurnAction = TurnActionNone
			g.PendingCard = 0
		}
		if g.CurrentPlayer >= len(g.Players) {
			g.CurrentPlayer = 0
		}
	}

	// The departed seat may have been the only one holding up a phase
	// transition.
	g.maybeBeginPlay()
	g.maybeFinish()

	return true
}
