package modio

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/modsync/internal/data"
)

// ErrNoSubscriptions is returned when the account has no subscribed mods.
var ErrNoSubscriptions = errors.New("modio: no subscriptions found")

// Mod is the subset of the mod object used here.
type Mod struct {
	ID      int     `json:"id"`
	GameID  int     `json:"game_id"`
	Name    string  `json:"name"`
	NameID  string  `json:"name_id"`
	Modfile Modfile `json:"modfile"`
}

type Modfile struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Download struct {
		BinaryURL string `json:"binary_url"`
	} `json:"download"`
}

type Game struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameID string `json:"name_id"`
}

type page[T any] struct {
	Data         []T `json:"data"`
	ResultCount  int `json:"result_count"`
	ResultOffset int `json:"result_offset"`
	ResultTotal  int `json:"result_total"`
}

// ToData converts m into the pipeline's mod record.
func (m Mod) ToData() data.Mod {
	return data.Mod{
		ID:     m.ID,
		NameID: m.NameID,
		Name:   m.Name,
		Modfile: data.Modfile{
			ID:          m.Modfile.ID,
			Filename:    m.Modfile.Filename,
			DownloadURL: m.Modfile.Download.BinaryURL,
		},
	}
}

// Subscribed returns every mod the token's user is subscribed to, across
// all pages.
func (c *Client) Subscribed(ctx context.Context) ([]Mod, error) {
	var all []Mod
	for offset := 0; ; {
		var p page[Mod]
		if err := c.get(ctx, "me/subscribed", pageQuery(offset), &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		offset += len(p.Data)
		if len(p.Data) == 0 || p.ResultTotal == 0 || offset >= p.ResultTotal {
			break
		}
	}
	return all, nil
}

// Game fetches one game's metadata.
func (c *Client) Game(ctx context.Context, id int) (Game, error) {
	var g Game
	err := c.get(ctx, "games/"+strconv.Itoa(id), nil, &g)
	return g, err
}

// ResolveGames lists subscriptions, fetches metadata for each distinct
// game concurrently and returns the games named by selectors (name_id or
// numeric id), each carrying its subscribed mods in subscription order.
// Games appear in selector order. No selectors selects every subscribed
// game.
func (c *Client) ResolveGames(ctx context.Context, selectors []string) ([]*data.Game, error) {
	subs, err := c.Subscribed(ctx)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoSubscriptions
	}

	var order []int
	mods := map[int][]data.Mod{}
	for _, s := range subs {
		if _, ok := mods[s.GameID]; !ok {
			order = append(order, s.GameID)
		}
		mods[s.GameID] = append(mods[s.GameID], s.ToData())
	}

	var (
		mu    sync.Mutex
		games = make(map[int]Game, len(order))
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for _, id := range order {
		id := id
		eg.Go(func() error {
			g, err := c.Game(egctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			games[id] = g
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if len(selectors) == 0 {
		for _, id := range order {
			selectors = append(selectors, strconv.Itoa(id))
		}
	}
	var out []*data.Game
	for _, sel := range selectors {
		for _, id := range order {
			g := games[id]
			dg := data.NewGame(g.ID, g.Name, g.NameID, mods[id])
			if !dg.Matches(sel) || slices.ContainsFunc(out, func(x *data.Game) bool { return x.ID == g.ID }) {
				continue
			}
			out = append(out, dg)
		}
	}
	c.log.Info("resolved games", "subscribed_mods", len(subs), "subscribed_games", len(order), "selected", len(out))
	return out, nil
}
