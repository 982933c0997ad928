package modio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	subs       []Mod
	games      map[int]Game
	gameCalls  atomic.Int32
	pageCalls  atomic.Int32
	failGameID int
}

func sub(id, gameID int, nameID string) Mod {
	m := Mod{ID: id, GameID: gameID, Name: nameID, NameID: nameID}
	m.Modfile.ID = id * 100
	m.Modfile.Filename = nameID + ".zip"
	m.Modfile.Download.BinaryURL = "https://cdn.example/" + nameID + ".zip"
	return m
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"code":401,"error_ref":11000,"message":"bad token"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.HandleFunc("/v1/me/subscribed", func(w http.ResponseWriter, r *http.Request) {
		f.pageCalls.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("_offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("_limit"))
		// serve at most two per page to exercise pagination
		limit = min(limit, 2)
		end := min(offset+limit, len(f.subs))
		p := page[Mod]{Data: f.subs[offset:end], ResultCount: end - offset, ResultOffset: offset, ResultTotal: len(f.subs)}
		_ = json.NewEncoder(w).Encode(p)
	})
	r.HandleFunc("/v1/games/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		f.gameCalls.Add(1)
		id, _ := strconv.Atoi(mux.Vars(r)["id"])
		if id == f.failGameID {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		g, ok := f.games[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, `{"error":{"code":404,"error_ref":14001,"message":"game %d not found"}}`, id)
			return
		}
		_ = json.NewEncoder(w).Encode(g)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, base, token string) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: base + "/v1", Token: token, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return c
}

func fixture() *fakeAPI {
	return &fakeAPI{
		subs: []Mod{
			sub(1, 10, "alpha"),
			sub(2, 20, "beta"),
			sub(3, 10, "gamma"),
			sub(4, 30, "delta"),
			sub(5, 10, "epsilon"),
		},
		games: map[int]Game{
			10: {ID: 10, Name: "Ten", NameID: "ten"},
			20: {ID: 20, Name: "Twenty", NameID: "twenty"},
			30: {ID: 30, Name: "Thirty", NameID: "thirty"},
		},
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{BaseURL: "https://api.example/v1"})
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = New(Options{BaseURL: "not a url", Token: "x"})
	assert.Error(t, err)
}

func TestSubscribedPaginates(t *testing.T) {
	api := fixture()
	srv := api.server(t)
	c := newClient(t, srv.URL, "tok")

	mods, err := c.Subscribed(context.Background())
	require.NoError(t, err)
	require.Len(t, mods, 5)
	assert.Equal(t, int32(3), api.pageCalls.Load())
	assert.Equal(t, "https://cdn.example/alpha.zip", mods[0].ToData().Modfile.DownloadURL)
	assert.Equal(t, "epsilon", mods[4].NameID)
}

func TestResolveGamesFiltersBySelector(t *testing.T) {
	api := fixture()
	srv := api.server(t)
	c := newClient(t, srv.URL, "tok")

	games, err := c.ResolveGames(context.Background(), []string{"30", "ten", "nope", "10"})
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "thirty", games[0].NameID)
	assert.Equal(t, "ten", games[1].NameID)
	var names []string
	for _, m := range games[1].Mods {
		names = append(names, m.NameID)
	}
	assert.Equal(t, []string{"alpha", "gamma", "epsilon"}, names)
	assert.Equal(t, 3, games[1].Stats().Total)
	// one metadata request per distinct game
	assert.Equal(t, int32(3), api.gameCalls.Load())
}

func TestResolveGamesAllWhenNoSelectors(t *testing.T) {
	srv := fixture().server(t)
	games, err := newClient(t, srv.URL, "tok").ResolveGames(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{games[0].ID, games[1].ID, games[2].ID})
}

func TestResolveGamesErrors(t *testing.T) {
	t.Run("bad token", func(t *testing.T) {
		srv := fixture().server(t)
		_, err := newClient(t, srv.URL, "wrong").ResolveGames(context.Background(), []string{"ten"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "got %v", err)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, 11000, apiErr.ErrorRef)
		assert.Equal(t, "bad token", apiErr.Msg)
	})

	t.Run("game lookup fails", func(t *testing.T) {
		api := fixture()
		api.failGameID = 20
		srv := api.server(t)
		_, err := newClient(t, srv.URL, "tok").ResolveGames(context.Background(), []string{"ten"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "got %v", err)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, "boom", apiErr.Msg)
	})

	t.Run("no subscriptions", func(t *testing.T) {
		api := fixture()
		api.subs = nil
		srv := api.server(t)
		_, err := newClient(t, srv.URL, "tok").ResolveGames(context.Background(), []string{"ten"})
		assert.ErrorIs(t, err, ErrNoSubscriptions)
	})
}
