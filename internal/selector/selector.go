// Package selector owns the song catalog and draws songs for rounds.
package selector

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/verte-zerg/tunequiz/internal/model"
)

// ErrNoSongsAvailable is returned when there is nothing to draw from.
var ErrNoSongsAvailable = errors.New("no songs available")

const (
	weakRatio = 0.6
	easyRatio = 0.8
)

// Params carries the inputs of a filter.
type Params struct {
	Albums       []string
	Snapshot     model.Snapshot
	AdaptiveType model.AdaptiveType
}

// Selector filters the catalog and samples songs without immediate repetition.
type Selector struct {
	rnd         *rand.Rand
	allSongs    []model.Song
	currentList []model.Song
	played      map[string]struct{}
}

// New returns a Selector over songs seeded with the current time.
func New(songs []model.Song) *Selector {
	return NewWithRand(songs, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand returns a Selector using the given random source.
func NewWithRand(songs []model.Song, rnd *rand.Rand) *Selector {
	all := append([]model.Song(nil), songs...)
	return &Selector{
		rnd:         rnd,
		allSongs:    all,
		currentList: append([]model.Song(nil), all...),
		played:      map[string]struct{}{},
	}
}

// ApplyFilter replaces the active subset. An empty result falls back to the full catalog.
func (s *Selector) ApplyFilter(mode model.Mode, params Params) {
	s.played = map[string]struct{}{}
	var filtered []model.Song
	switch mode {
	case model.ModeAlbumTrain:
		filtered = filterAlbums(s.allSongs, params.Albums)
	case model.ModeAdaptiveTrain:
		filtered = filterAdaptive(s.allSongs, params.Snapshot, params.AdaptiveType)
	}
	if len(filtered) == 0 {
		filtered = s.allSongs
	}
	s.currentList = append([]model.Song(nil), filtered...)
}

// RandomSong draws uniformly from songs not yet drawn in the active subset.
// Once every song was drawn the cycle starts over.
func (s *Selector) RandomSong() (model.Song, error) {
	if len(s.currentList) == 0 {
		return model.Song{}, ErrNoSongsAvailable
	}
	available := make([]model.Song, 0, len(s.currentList))
	for _, song := range s.currentList {
		if _, ok := s.played[song.ID]; !ok {
			available = append(available, song)
		}
	}
	if len(available) == 0 {
		s.played = map[string]struct{}{}
		available = s.currentList
	}
	song := available[s.rnd.Intn(len(available))]
	s.played[song.ID] = struct{}{}
	return song, nil
}

// Count returns the size of the active subset.
func (s *Selector) Count() int {
	return len(s.currentList)
}

// Songs returns a copy of the active subset in order.
func (s *Selector) Songs() []model.Song {
	return append([]model.Song(nil), s.currentList...)
}

// Catalog returns a copy of the full catalog.
func (s *Selector) Catalog() []model.Song {
	return append([]model.Song(nil), s.allSongs...)
}

// SongIDs returns the ids of the full catalog.
func (s *Selector) SongIDs() []string {
	ids := make([]string, len(s.allSongs))
	for i, song := range s.allSongs {
		ids[i] = song.ID
	}
	return ids
}

// Albums returns unique non-empty album names in catalog order.
func (s *Selector) Albums() []string {
	seen := map[string]struct{}{}
	var albums []string
	for _, song := range s.allSongs {
		if song.Album == "" {
			continue
		}
		if _, ok := seen[song.Album]; ok {
			continue
		}
		seen[song.Album] = struct{}{}
		albums = append(albums, song.Album)
	}
	return albums
}

func filterAlbums(songs []model.Song, albums []string) []model.Song {
	if len(albums) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(albums))
	for _, a := range albums {
		allowed[a] = struct{}{}
	}
	var out []model.Song
	for _, song := range songs {
		if _, ok := allowed[song.Album]; ok {
			out = append(out, song)
		}
	}
	return out
}

type scoredSong struct {
	song model.Song
	stat model.PerformanceStat
}

func filterAdaptive(songs []model.Song, snap model.Snapshot, kind model.AdaptiveType) []model.Song {
	if len(snap) == 0 {
		return nil
	}
	var candidates []scoredSong
	keep := func(song model.Song, pred func(model.PerformanceStat) bool) {
		stat := snap[song.ID]
		if pred(stat) {
			candidates = append(candidates, scoredSong{song: song, stat: stat})
		}
	}

	switch kind {
	case model.AdaptiveWeakest:
		for _, song := range songs {
			keep(song, func(st model.PerformanceStat) bool {
				return st.PlayCount > 0 && (st.CorrectRatio() < weakRatio || st.LastAttemptFailed())
			})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			ri, rj := candidates[i].stat.CorrectRatio(), candidates[j].stat.CorrectRatio()
			if ri != rj {
				return ri < rj
			}
			return candidates[i].stat.LastAttemptFailed() && !candidates[j].stat.LastAttemptFailed()
		})
	case model.AdaptiveEasiest:
		for _, song := range songs {
			keep(song, func(st model.PerformanceStat) bool {
				return st.PlayCount > 0 && st.CorrectRatio() >= easyRatio
			})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].stat.CorrectRatio() > candidates[j].stat.CorrectRatio()
		})
	case model.AdaptiveRecentlyIncorrect:
		for _, song := range songs {
			keep(song, func(st model.PerformanceStat) bool {
				return st.LastAttemptFailed()
			})
		}
	default:
		return nil
	}

	out := make([]model.Song, len(candidates))
	for i, c := range candidates {
		out[i] = c.song
	}
	return out
}
