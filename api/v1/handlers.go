package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"

	"github.com/tinoosan/modsync/internal/data"
	"github.com/tinoosan/modsync/internal/events"
	"github.com/tinoosan/modsync/internal/repo"
	"github.com/tinoosan/modsync/internal/service"
)

// eventBuffer is the per-connection backlog before outcomes are dropped.
const eventBuffer = 64

// StatusHandler serves read-only views of a sync run.
type StatusHandler struct {
	l        *slog.Logger
	svc      service.Sync
	outcomes repo.OutcomeReader
	bus      *events.Bus
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the logger.
func (w *rwLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// context keys
type ctxKeyQuery struct{}

// NewStatusHandler builds a handler. outcomes and bus may be nil, which
// disables the corresponding endpoints.
func NewStatusHandler(l *slog.Logger, svc service.Sync, outcomes repo.OutcomeReader, bus *events.Bus) *StatusHandler {
	return &StatusHandler{l: l, svc: svc, outcomes: outcomes, bus: bus}
}

// GetGames lists every game of the current or last run.
func (h *StatusHandler) GetGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Games())
}

// GetGame returns one game, looked up by numeric id or name_id.
func (h *StatusHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["id"]
	for _, g := range h.svc.Games() {
		if key == g.NameID || key == strconv.Itoa(g.ID) {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrGameUnknown)
}

// GetOutcomes lists stored outcomes, oldest first.
func (h *StatusHandler) GetOutcomes(w http.ResponseWriter, r *http.Request) {
	q, ok := r.Context().Value(ctxKeyQuery{}).(outcomeQuery)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrQueryCtx)
		return
	}
	if h.outcomes == nil {
		writeJSON(w, http.StatusOK, []repo.Record{})
		return
	}
	recs, err := h.outcomes.List(r.Context(), q.GameID, q.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []repo.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// outcomeEvent is the wire form of a live outcome.
type outcomeEvent struct {
	GameID  int       `json:"game_id"`
	Mod     data.Mod  `json:"mod"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Events upgrades to a websocket and streams every outcome reported while
// the connection is open, one JSON text message per outcome.
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, ErrNoEvents)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the response.
		markErr(w, err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	ch, cancel := h.bus.Subscribe(eventBuffer)
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(outcomeEvent{GameID: o.GameID, Mod: o.Mod, Status: o.Status(), Message: o.Message(), At: o.At})
			if err != nil {
				h.l.Error("encode event", "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				h.l.Debug("event stream closed", "err", err)
				return
			}
		}
	}
}
