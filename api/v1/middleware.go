package v1

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tinoosan/modsync/internal/reqid"
)

const defaultOutcomeLimit = 100

type outcomeQuery struct {
	GameID int
	Limit  int
}

// MiddlewareOutcomeQuery parses ?game= and ?limit= for the outcomes
// listing. A missing game lists every game; limit 0 means no limit.
func MiddlewareOutcomeQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := outcomeQuery{Limit: defaultOutcomeLimit}
		if s := r.URL.Query().Get("game"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil || id <= 0 {
				writeError(w, http.StatusBadRequest, ErrGameID)
				return
			}
			q.GameID = id
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, ErrLimit)
				return
			}
			q.Limit = n
		}
		ctx := context.WithValue(r.Context(), ctxKeyQuery{}, q)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *StatusHandler) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"dur_ms", time.Since(startTime).Milliseconds(),
			"bytes", rw.bytes,
		}
		if id, ok := reqid.From(r.Context()); ok {
			attrs = append(attrs, "request_id", id)
		}
		if rw.err != nil {
			h.l.Error(rw.err.Error(), attrs...)
			return
		}
		h.l.Info("", attrs...)
	})
}
