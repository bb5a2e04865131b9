// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/ledger"
	"github.com/danielhkuo/quickly-buzz/models"
	"github.com/danielhkuo/quickly-buzz/round"
	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes full values over websockets whenever they change.
type StreamHandler struct {
	ctl *round.Controller
	led *ledger.Ledger
	cfg cliparse.Config
}

func NewStreamHandler(st store.Store, cfg cliparse.Config) *StreamHandler {
	return &StreamHandler{
		ctl: round.NewController(st, cfg.Namespace, slog.Default()),
		led: ledger.New(st, cfg.Namespace, slog.Default()),
		cfg: cfg,
	}
}

// Round handles GET /ws/round
func (h *StreamHandler) Round(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context) (<-chan frame, error) {
		updates, err := h.ctl.Watch(ctx)
		if err != nil {
			return nil, err
		}
		return relay(ctx, updates, func(u round.Update) frame {
			return frame{value: roundView(u.State, u.Revision), err: u.Err}
		}), nil
	})
}

// Board handles GET /ws/scores
func (h *StreamHandler) Board(w http.ResponseWriter, r *http.Request) {
	serve(w, r, func(ctx context.Context) (<-chan frame, error) {
		updates, err := h.led.WatchBoard(ctx)
		if err != nil {
			return nil, err
		}
		return relay(ctx, updates, func(u ledger.BoardUpdate) frame {
			return frame{value: boardView(u.Entries), err: u.Err}
		}), nil
	})
}

// Entry handles GET /ws/scores/{key}
func (h *StreamHandler) Entry(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	serve(w, r, func(ctx context.Context) (<-chan frame, error) {
		updates, err := h.led.WatchEntry(ctx, key)
		if err != nil {
			return nil, err
		}
		return relay(ctx, updates, func(u ledger.EntryUpdate) frame {
			f := models.EntryFrame{Present: u.Present}
			if u.Present {
				e := entryView(u.Entry)
				f.Entry = &e
			}
			return frame{value: f, err: u.Err}
		}), nil
	})
}

type frame struct {
	value any
	err   error
}

func relay[T any](ctx context.Context, in <-chan T, conv func(T) frame) <-chan frame {
	out := make(chan frame)
	go func() {
		defer close(out)
		for u := range in {
			select {
			case out <- conv(u):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// serve upgrades the connection and writes every frame until the client
// goes away or the subscription ends. An unavailable store is reported as a
// stale frame and the stream stays open; a permission error ends it.
func serve(w http.ResponseWriter, r *http.Request, subscribe func(context.Context) (<-chan frame, error)) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := subscribe(ctx)
	if err != nil {
		writeError(w, err, "Failed to subscribe")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client closing; incoming messages are ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(timeouts.WSPing)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeouts.WSWrite)); err != nil {
				return
			}
		case f, ok := <-frames:
			if !ok {
				closeStream(conn, websocket.CloseNormalClosure, "")
				return
			}
			var v any = f.value
			if f.err != nil {
				v = models.StreamError{Error: f.err.Error(), Stale: true}
			}
			conn.SetWriteDeadline(time.Now().Add(timeouts.WSWrite))
			if err := conn.WriteJSON(v); err != nil {
				slog.Debug("websocket write failed", "path", r.URL.Path, "error", err)
				return
			}
			if errors.Is(f.err, store.ErrPermissionDenied) {
				closeStream(conn, websocket.ClosePolicyViolation, "permission denied")
				return
			}
		}
	}
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.WSWrite))
}
