package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-playback-service/internal/playback"
)

// DocumentSource fetches the raw JSON of a quiz document by id.
type DocumentSource interface {
	FetchDocument(ctx context.Context, docID string) ([]byte, error)
}

// WSHandler runs one playback sequence per WebSocket connection: the
// server streams playback snapshots, the client sends option selections
// and reload requests.
type WSHandler struct {
	source   DocumentSource
	upgrader websocket.Upgrader
	tick     time.Duration
	reveal   time.Duration
}

// HandlerOption tunes the handler's playback clocks.
type HandlerOption func(*WSHandler)

// WithTickInterval shrinks the countdown second (tests, fast previews).
func WithTickInterval(d time.Duration) HandlerOption {
	return func(h *WSHandler) { h.tick = d }
}

// WithRevealWindow overrides the post-answer reveal delay.
func WithRevealWindow(d time.Duration) HandlerOption {
	return func(h *WSHandler) { h.reveal = d }
}

func NewWSHandler(source DocumentSource, opts ...HandlerOption) *WSHandler {
	h := &WSHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionID string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// playback sequencer.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "missing docId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	player := playback.NewPlayer(h.playerOptions()...)
	defer player.Stop()

	updates, cancel := player.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- frameFor(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// A rejected document is not fatal to the connection: the client keeps
	// the error frame and may send "reload" once the document is fixed.
	h.loadDocument(r.Context(), player, docID, send)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			if !player.SelectOption(payload.OptionID) {
				// No-op by contract: late and invalid selections are ignored.
				log.Printf("ws: ignored selection %q for doc %s", payload.OptionID, docID)
			}
		case "reload":
			h.loadDocument(r.Context(), player, docID, send)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) loadDocument(ctx context.Context, player *playback.Player, docID string, send chan<- outboundMessage[any]) {
	raw, err := h.source.FetchDocument(ctx, docID)
	if err != nil {
		log.Printf("ws: fetch document %s failed: %v", docID, err)
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	if err := player.Load(raw); err != nil {
		// Field-level detail goes to the server log; the subscriber stream
		// also carries the failed status for the client UI.
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
}

func (h *WSHandler) playerOptions() []playback.Option {
	var opts []playback.Option
	if h.tick > 0 {
		opts = append(opts, playback.WithTickInterval(h.tick))
	}
	if h.reveal > 0 {
		opts = append(opts, playback.WithRevealWindow(h.reveal))
	}
	return opts
}

func frameFor(snap playback.Snapshot) outboundMessage[any] {
	switch snap.Status {
	case playback.StatusFinished:
		return outboundMessage[any]{Type: "complete", Payload: snap}
	case playback.StatusFailed:
		return outboundMessage[any]{Type: "playbackError", Payload: snap}
	default:
		return outboundMessage[any]{Type: "playback", Payload: snap}
	}
}
