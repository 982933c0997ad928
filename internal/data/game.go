package data

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

var (
	ErrDuplicateMod = errors.New("duplicate mod name_id")
	ErrNotFound     = errors.New("not found")
)

// Game is one selected game and the mods the user is subscribed to for it.
// Identity fields are set at construction; counters are only touched
// through the methods below so concurrent workers can share a Game.
type Game struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	NameID string `json:"name_id"`
	Mods   []Mod  `json:"mods"`

	mu    sync.Mutex
	stats Stats
}

// Stats is a snapshot of a game's processing counters.
type Stats struct {
	Total          int `json:"total"`
	Downloaded     int `json:"downloaded"`
	Extracted      int `json:"extracted"`
	FailedDownload int `json:"failed_download"`
	FailedExtract  int `json:"failed_extract"`
}

// Consistent reports whether the counters satisfy
// downloaded+failed_download == total and extracted+failed_extract == downloaded.
func (s Stats) Consistent() bool {
	return s.Downloaded+s.FailedDownload == s.Total && s.Extracted+s.FailedExtract == s.Downloaded
}

// Failed returns the number of mods that did not make it through extraction.
func (s Stats) Failed() int { return s.FailedDownload + s.FailedExtract }

func NewGame(id int, name, nameID string, mods []Mod) *Game {
	g := &Game{ID: id, Name: name, NameID: nameID, Mods: mods}
	g.stats.Total = len(mods)
	return g
}

// Key returns the identifier used for on-disk directories.
func (g *Game) Key() string { return strconv.Itoa(g.ID) }

// Matches reports whether selector names this game by id or name_id.
func (g *Game) Matches(selector string) bool {
	return selector == g.NameID || selector == g.Key()
}

func (g *Game) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Reset zeroes the counters and sets Total from the current mod list.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats = Stats{Total: len(g.Mods)}
}

func (g *Game) MarkDownloaded() { g.update(func(s *Stats) { s.Downloaded++ }) }

func (g *Game) MarkDownloadFailed() { g.update(func(s *Stats) { s.FailedDownload++ }) }

func (g *Game) MarkExtracted() { g.update(func(s *Stats) { s.Extracted++ }) }

func (g *Game) MarkExtractFailed() { g.update(func(s *Stats) { s.FailedExtract++ }) }

func (g *Game) update(fn func(*Stats)) {
	g.mu.Lock()
	fn(&g.stats)
	g.mu.Unlock()
}

// ValidateMods rejects mod lists where two entries share a name_id, since
// they would share on-disk directories.
func (g *Game) ValidateMods() error {
	seen := make(map[string]int, len(g.Mods))
	for _, m := range g.Mods {
		if m.NameID == "" {
			return fmt.Errorf("game %s: mod %d: %w", g.NameID, m.ID, ErrInvalidMod)
		}
		if prev, ok := seen[m.NameID]; ok {
			return fmt.Errorf("game %s: mods %d and %d share %q: %w", g.NameID, prev, m.ID, m.NameID, ErrDuplicateMod)
		}
		seen[m.NameID] = m.ID
	}
	return nil
}
