// Partybox Skyjo Game
//
// An authoritative server for the Skyjo card game. Each player holds a
// hidden 3x4 grid of cards, draws from the deck or the discard pile,
// and tries to finish with the lowest total. The server owns the single
// shared game: it builds and shuffles the deck, validates every command
// against turn order and phase, clears matched columns, and ends the
// game one full round after any player reveals their whole grid.
//
// Features:
// - WebSocket endpoint at /path/ws speaking typed JSON messages
// - One global game instance; create/join/start/reset via commands
// - Full game state broadcast to every client after each mutation
// - Drawn card values sent only to the acting client; hidden grid
//   values are never broadcast, other clients see counts only
// - Players identified by a per-connection random ID
// - Disconnects remove the player and repair the turn order
// - Idle games reaped after a configurable session timeout
// - In-browser QR button to share the game URL, backed by go-qrcode
//
// The game state is only ever touched from the hub's run goroutine, so
// every command runs to completion before the next is processed.

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// ClientMessage is the envelope for all commands coming from clients,
// tagged by Type: "create_game", "join_game", "start_game",
// "reveal_initial_card", "draw_card", "replace_card",
// "discard_drawn_card", "reset_game".
type ClientMessage struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`         // join_game
	CardIndex   *int   `json:"card_index,omitempty"`   // reveal_initial_card / replace_card / discard_drawn_card
	FromDiscard *bool  `json:"from_discard,omitempty"` // draw_card
	DrawnCard   *int   `json:"drawn_card,omitempty"`   // accepted for compatibility; the server's remembered draw wins
}

// SlotSnapshot is one grid slot as seen by clients. Value is present
// only for revealed slots; hidden cards are never sent over the wire.
type SlotSnapshot struct {
	Revealed bool `json:"revealed"`
	Cleared  bool `json:"cleared"`
	Value    *int `json:"value,omitempty"`
}

type PlayerSnapshot struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Grid               []SlotSnapshot `json:"grid"`
	Score              int            `json:"score"`
	HasPlayedLastRound bool           `json:"has_played_last_round"`
}

// GameSnapshot is the broadcast view of the game. Deck and discard are
// exposed as counts plus the visible top of the discard pile.
type GameSnapshot struct {
	Players              []PlayerSnapshot `json:"players"`
	DeckCount            int              `json:"deck_count"`
	DiscardTop           *int             `json:"discard_top"`
	DiscardCount         int              `json:"discard_count"`
	CurrentPlayer        int              `json:"current_player"`
	Phase                Phase            `json:"phase"`
	TurnAction           TurnAction       `json:"turn_action,omitempty"`
	Started              bool             `json:"started"`
	LastRoundTriggered   bool             `json:"last_round_triggered"`
	LastRoundTriggeredBy string           `json:"last_round_triggered_by,omitempty"`
}

// GameStateMessage carries the full state to all clients. State is null
// when no game exists.
type GameStateMessage struct {
	Type  string        `json:"type"` // "game_state"
	State *GameSnapshot `json:"state"`
}

// PlayerIDMessage acknowledges a successful join to that client only.
type PlayerIDMessage struct {
	Type     string `json:"type"` // "player_id"
	PlayerID string `json:"player_id"`
}

// DrawnCardMessage reveals a drawn value to the acting client only.
type DrawnCardMessage struct {
	Type  string `json:"type"` // "drawn_card"
	Value int    `json:"value"`
}

// ErrorMessage is sent to a single client on a failed join.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

// Hub owns the one shared GameState and all connected clients. Every
// mutation happens inside run, one command at a time.
type Hub struct {
	clients map[*Client]bool
	game    *GameState

	register chan *Client
	unreg    chan *Client
	commands chan command

	lastActive time.Time
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		lastActive: time.Now(),
	}
}

func (h *Hub) run(cfg *Config) {
	var reap <-chan time.Time
	if cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(reapInterval(cfg.sessionTimeout))
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

			// New clients learn the current state before issuing
			// any command.
			c.send <- GameStateMessage{
				Type:  "game_state",
				State: snapshot(h.game),
			}

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.handleDisconnect(cfg, c)

		case cmd := <-h.commands:
			h.handleCommand(cfg, cmd)

		case <-reap:
			if h.game != nil && time.Since(h.lastActive) > cfg.sessionTimeout {
				logf(cfg, "GAMES: Reaped idle skyjo game")
				h.game = nil
				h.broadcastState()
			}
		}
	}
}

// reapInterval halves the session timeout for polling, clamped so a
// tiny timeout cannot produce a zero ticker interval, which panics.
func reapInterval(sessionTimeout time.Duration) time.Duration {
	interval := sessionTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// snapshot builds the wire view of the game, masking everything a
// client is not allowed to see.
func snapshot(g *GameState) *GameSnapshot {
	if g == nil {
		return nil
	}

	players := make([]PlayerSnapshot, 0, len(g.Players))
	for _, p := range g.Players {
		grid := make([]SlotSnapshot, gridSize)
		for i, c := range p.Grid {
			grid[i] = SlotSnapshot{
				Revealed: c.Revealed,
				Cleared:  c.cleared(),
			}
			if c.Revealed && !c.cleared() {
				v := *c.Value
				grid[i].Value = &v
			}
		}
		players = append(players, PlayerSnapshot{
			ID:                 p.ID,
			Name:               p.Name,
			Grid:               grid,
			Score:              p.Grid.score(),
			HasPlayedLastRound: p.HasPlayedLastRound,
		})
	}

	snap := &GameSnapshot{
		Players:              players,
		DeckCount:            len(g.Deck),
		DiscardCount:         len(g.Discard),
		CurrentPlayer:        g.CurrentPlayer,
		Phase:                g.Phase,
		TurnAction:           g.TurnAction,
		Started:              g.Started,
		LastRoundTriggered:   g.LastRoundTriggered,
		LastRoundTriggeredBy: g.LastRoundTriggeredBy,
	}
	if len(g.Discard) > 0 {
		top := g.Discard[len(g.Discard)-1]
		snap.DiscardTop = &top
	}

	return snap
}

// broadcastState sends the full state to every client. Sends never
// block the hub; a client with a full send buffer is dropped.
func (h *Hub) broadcastState() {
	msg := GameStateMessage{
		Type:  "game_state",
		State: snapshot(h.game),
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// reply sends a message to a single client, evicting it if stuck.
func (h *Hub) reply(c *Client, msg any) {
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) handleDisconnect(cfg *Config, c *Client) {
	if h.game == nil {
		return
	}
	if !h.game.removePlayer(c.playerID) {
		return
	}

	logf(cfg, "GAMES: Player %s left the skyjo game", c.playerID)

	if len(h.game.Players) == 0 {
		h.game = nil
	}
	h.lastActive = time.Now()
	h.broadcastState()
}

// handleCommand validates and applies one client command. Rejected
// commands change nothing and produce no events, except a failed join,
// which gets an explicit error reply.
func (h *Hub) handleCommand(cfg *Config, cmd command) {
	c := cmd.client
	msg := cmd.msg

	switch msg.Type {
	case "create_game":
		h.game = newGameState()
		logf(cfg, "GAMES: Created skyjo game")

	case "join_game":
		if msg.Name == "" {
			return
		}
		if h.game == nil {
			h.reply(c, ErrorMessage{Type: "error", Message: errGameUnavailable.Error()})
			return
		}
		if _, p := h.game.findPlayer(c.playerID); p != nil {
			return
		}
		if _, err := h.game.join(c.playerID, msg.Name); err != nil {
			h.reply(c, ErrorMessage{Type: "error", Message: err.Error()})
			return
		}
		logf(cfg, "GAMES: Player %q joined the skyjo game", msg.Name)
		h.reply(c, PlayerIDMessage{Type: "player_id", PlayerID: c.playerID})

	case "start_game":
		if h.game == nil || !h.game.start() {
			return
		}
		logf(cfg, "GAMES: Started skyjo game with %d players", len(h.game.Players))

	case "reveal_initial_card":
		if h.game == nil || msg.CardIndex == nil {
			return
		}
		if !h.game.revealInitial(c.playerID, *msg.CardIndex) {
			return
		}

	case "draw_card":
		if h.game == nil {
			return
		}
		fromDiscard := msg.FromDiscard != nil && *msg.FromDiscard
		drawn, ok := h.game.draw(c.playerID, fromDiscard)
		if !ok {
			return
		}
		h.reply(c, DrawnCardMessage{Type: "drawn_card", Value: drawn})

	case "replace_card":
		if h.game == nil || msg.CardIndex == nil {
			return
		}
		if !h.game.replace(c.playerID, *msg.CardIndex) {
			return
		}
		h.logIfFinished(cfg)

	case "discard_drawn_card":
		if h.game == nil || msg.CardIndex == nil {
			return
		}
		if !h.game.discardDrawn(c.playerID, *msg.CardIndex) {
			return
		}
		h.logIfFinished(cfg)

	case "reset_game":
		h.game = nil
		logf(cfg, "GAMES: Reset skyjo game")

	default:
		return
	}

	h.lastActive = time.Now()
	h.broadcastState()
}

func (h *Hub) logIfFinished(cfg *Config) {
	if h.game == nil || h.game.Phase != PhaseFinished {
		return
	}

	winner := ""
	best := 0
	for i, p := range h.game.Players {
		score := p.Grid.score()
		if i == 0 || score < best {
			winner = p.Name
			best = score
		}
	}
	logf(cfg, "GAMES: Skyjo game finished, %q wins with %d points", winner, best)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// newPlayerID generates a fresh random ID for one connection. Players
// do not survive their connection, so no cookie is involved.
func newPlayerID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

// serveWS upgrades the connection and hands it to the hub.
func serveWS(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := newPlayerID()
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create_game", "join_game", "start_game",
			"reveal_initial_card", "draw_card",
			"replace_card", "discard_drawn_card", "reset_game":
			h.commands <- command{
				client: c,
				msg:    msg,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed skyjo/index.html
var indexHTML []byte

//go:embed skyjo/app.css
var skyjoCSS []byte

//go:embed skyjo/app.js
var skyjoJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(skyjoCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(skyjoJS)
	}
}

// registerSkyjoGame sets up routes so that:
//   - $path       → HTML client
//   - $path/ws    → WebSocket for the shared game
//   - $path/qr    → PNG QR code for the game URL
func registerSkyjoGame(cfg *Config, path string, mux *httprouter.Router) {
	hub := newHub()
	go hub.run(cfg)

	// Client view (HTML)
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	// Shared assets
	mux.GET(cfg.prefix+"/assets/skyjo/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/skyjo/app.js", getJsHandler(cfg))

	// Websocket for the single shared game
	mux.GET(cfg.prefix+path+"/ws", serveWS(hub))

	// QR code
	mux.GET(cfg.prefix+path+"/qr", qrHandler)
}
