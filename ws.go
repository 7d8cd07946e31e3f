package main

import (
	"context"
	_ "embed"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/segmentio/encoding/json"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type             string `json:"type"`                       // "join", "start", "answer", "rate"
	Name             string `json:"name,omitempty"`             // join
	Politics         string `json:"politics,omitempty"`         // join
	Answer           string `json:"answer,omitempty"`           // answer
	PlayerBeingRated string `json:"playerBeingRated,omitempty"` // rate
	Rating           int    `json:"rating"`                     // rate
}

// WelcomeMessage is sent once on connect so the client knows its player id
// and can prefill the join form from the stored profile.
type WelcomeMessage struct {
	Type     string  `json:"type"` // "welcome"
	PlayerID string  `json:"player_id"`
	Profile  Profile `json:"profile"`
}

// SessionMessage carries a session snapshot to subscribers.
type SessionMessage struct {
	Type    string   `json:"type"` // "session"
	Session *Session `json:"session"`
}

// ErrorMessage reports a failed operation back to the offending client.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "soapbox_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// enqueue hands a message to the write pump. A client that cannot keep up
// is disconnected, which in turn cancels its subscription.
func (c *Client) enqueue(msg any) {
	select {
	case c.send <- msg:
	default:
		_ = c.conn.Close()
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		payload, err := json.Marshal(msg)
		if err != nil {
			log.Println("marshal error:", err)
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump drives the game from client messages. The subscription taken on
// the first successful join is cancelled when the connection drops, and
// that cancellation is what removes the player from the session.
func (c *Client) readPump(cfg *Config, game *Game, sessionID string) {
	var sub *Subscription

	defer func() {
		if sub != nil {
			sub.Cancel()
		}
		close(c.send)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "join":
			snap := game.Join(sessionID, c.playerID, msg.Politics)
			if sub == nil {
				s, err := game.Subscribe(sessionID, c.playerID)
				if err != nil {
					c.enqueue(ErrorMessage{Type: "error", Kind: errorKind(err), Message: err.Error()})
					continue
				}
				sub = s
				go c.forwardSnapshots(cfg, sub)
			}
			c.enqueue(SessionMessage{Type: "session", Session: snap})

			go upsertProfile(cfg, game.archive, c.playerID, msg.Name, msg.Politics)

		case "start":
			if err := game.Start(sessionID); err != nil {
				c.enqueue(ErrorMessage{Type: "error", Kind: errorKind(err), Message: err.Error()})
			}

		case "answer":
			if err := game.AnswerQuestion(sessionID, c.playerID, msg.Answer); err != nil {
				c.enqueue(ErrorMessage{Type: "error", Kind: errorKind(err), Message: err.Error()})
			}

		case "rate":
			err := game.RateAnswer(sessionID, RatingSubmission{
				Rater:            c.playerID,
				PlayerBeingRated: msg.PlayerBeingRated,
				Rating:           msg.Rating,
			})
			if err != nil {
				c.enqueue(ErrorMessage{Type: "error", Kind: errorKind(err), Message: err.Error()})
			}

		default:
			// ignore unknown types
		}
	}
}

// forwardSnapshots relays the subscription stream to the write pump. The
// stream ending (session destroyed, or this subscriber fell behind) drops
// the connection so the client notices.
func (c *Client) forwardSnapshots(cfg *Config, sub *Subscription) {
	for snap := range sub.Updates() {
		c.enqueue(SessionMessage{Type: "session", Session: snap})
	}
	logf(cfg, "GAMES: Snapshot stream ended for player %s in session %s", c.playerID, sub.SessionID())
	_ = c.conn.Close()
}

func upsertProfile(cfg *Config, archive *Archiver, playerID, name, politics string) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	if err := archive.UpsertProfile(ctx, playerID, Profile{Name: name, Politics: politics}); err != nil {
		logf(cfg, "ARCHIVE: Profile upsert failed for %s: %v", playerID, err)
	}
}

// serveWS upgrades the connection and runs the client pumps for the
// session named in the route.
func serveWS(cfg *Config, game *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("gameid")
		if sessionID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

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

		go client.writePump()

		profile, err := game.archive.Profile(r.Context(), playerID)
		if err != nil {
			logf(cfg, "ARCHIVE: Profile read failed for %s: %v", playerID, err)
		}
		client.enqueue(WelcomeMessage{Type: "welcome", PlayerID: playerID, Profile: profile})

		client.readPump(cfg, game, sessionID)
	}
}

// qrHandler generates a PNG QR code for the current session URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
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

// ---- Static client ----

//go:embed play/index.html
var indexHTML []byte

//go:embed play/app.css
var soapboxCSS []byte

//go:embed play/app.js
var soapboxJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(soapboxCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(soapboxJS)
	}
}

// redirectNewSession handles GET /play by minting a session id and
// redirecting to its page. The session itself is created on first join.
func redirectNewSession(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := uuid.NewString()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// redirectPublicLobby handles GET /lobby by resolving the shared public
// session and redirecting into it.
func redirectPublicLobby(cfg *Config, path string, game *Game) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := game.PublicLobbyID()
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerPlayRoutes sets up routes so that:
//   - $path                  → redirects to a new random session
//   - /lobby                 → redirects to the shared public session
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that session
//   - $path/:gameid/qr       → PNG QR code for that session URL
func registerPlayRoutes(cfg *Config, game *Game, path string, mux *httprouter.Router) {
	mux.GET(cfg.prefix+path, redirectNewSession(cfg, path))

	mux.GET(cfg.prefix+"/lobby", redirectPublicLobby(cfg, path, game))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg))

	mux.GET(cfg.prefix+"/assets/play/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/play/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWS(cfg, game))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
