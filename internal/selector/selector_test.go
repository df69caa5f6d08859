package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tunequiz/internal/model"
)

func catalog(n int) []model.Song {
	albums := []string{"19", "21", "25"}
	songs := make([]model.Song, n)
	for i := range songs {
		songs[i] = model.Song{
			ID:    fmt.Sprintf("s%d", i),
			Title: fmt.Sprintf("Song %d", i),
			Album: albums[i%len(albums)],
		}
	}
	return songs
}

func newSelector(songs []model.Song) *Selector {
	return NewWithRand(songs, rand.New(rand.NewSource(7)))
}

func ids(songs []model.Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

func TestRandomSongCyclesWithoutRepeats(t *testing.T) {
	sel := newSelector(catalog(4))
	for cycle := 0; cycle < 3; cycle++ {
		seen := map[string]struct{}{}
		for i := 0; i < 4; i++ {
			song, err := sel.RandomSong()
			require.NoError(t, err)
			_, dup := seen[song.ID]
			require.False(t, dup, "song %s drawn twice in cycle %d", song.ID, cycle)
			seen[song.ID] = struct{}{}
		}
		assert.Len(t, seen, 4)
	}
}

func TestRandomSongNeverRepeatsBackToBackWithinCycle(t *testing.T) {
	sel := newSelector(catalog(2))
	first, err := sel.RandomSong()
	require.NoError(t, err)
	second, err := sel.RandomSong()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRandomSongEmptyCatalog(t *testing.T) {
	sel := newSelector(nil)
	_, err := sel.RandomSong()
	require.ErrorIs(t, err, ErrNoSongsAvailable)
}

func TestAlbumFilter(t *testing.T) {
	sel := newSelector(catalog(6))
	sel.ApplyFilter(model.ModeAlbumTrain, Params{Albums: []string{"21"}})
	require.Equal(t, 2, sel.Count())
	for _, song := range sel.Songs() {
		assert.Equal(t, "21", song.Album)
	}
}

func TestAlbumFilterWithoutMatchesFallsBackToCatalog(t *testing.T) {
	sel := newSelector(catalog(6))
	sel.ApplyFilter(model.ModeAlbumTrain, Params{Albums: []string{"30"}})
	assert.Equal(t, ids(catalog(6)), ids(sel.Songs()))

	sel.ApplyFilter(model.ModeAlbumTrain, Params{})
	assert.Equal(t, 6, sel.Count())
}

func TestApplyFilterClearsPlayed(t *testing.T) {
	sel := newSelector(catalog(2))
	_, err := sel.RandomSong()
	require.NoError(t, err)
	sel.ApplyFilter(model.ModeStandard, Params{})
	assert.Empty(t, sel.played)
}

func TestAdaptiveWeakest(t *testing.T) {
	songs := catalog(5)
	snap := model.Snapshot{
		"s0": {PlayCount: 10, CorrectCount: 9, LastAttemptCorrect: boolPtr(true)},
		"s1": {PlayCount: 4, CorrectCount: 2, LastAttemptCorrect: boolPtr(true)},
		"s2": {PlayCount: 4, CorrectCount: 2, LastAttemptCorrect: boolPtr(false)},
		"s3": {PlayCount: 5, CorrectCount: 4, LastAttemptCorrect: boolPtr(false)},
		"s4": {PlayCount: 3, CorrectCount: 0, LastAttemptCorrect: nil},
	}
	sel := newSelector(songs)
	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{Snapshot: snap, AdaptiveType: model.AdaptiveWeakest})
	assert.Equal(t, []string{"s4", "s2", "s1", "s3"}, ids(sel.Songs()))
}

func TestAdaptiveEasiest(t *testing.T) {
	snap := model.Snapshot{
		"s0": {PlayCount: 5, CorrectCount: 4},
		"s1": {PlayCount: 2, CorrectCount: 2},
		"s2": {PlayCount: 10, CorrectCount: 7},
	}
	sel := newSelector(catalog(4))
	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{Snapshot: snap, AdaptiveType: model.AdaptiveEasiest})
	assert.Equal(t, []string{"s1", "s0"}, ids(sel.Songs()))
}

func TestAdaptiveRecentlyIncorrect(t *testing.T) {
	snap := model.Snapshot{
		"s1": {PlayCount: 1, LastAttemptCorrect: boolPtr(false)},
		"s2": {PlayCount: 1, LastAttemptCorrect: boolPtr(true)},
		"s3": {PlayCount: 1},
	}
	sel := newSelector(catalog(4))
	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{Snapshot: snap, AdaptiveType: model.AdaptiveRecentlyIncorrect})
	assert.Equal(t, []string{"s1"}, ids(sel.Songs()))
}

func TestAdaptiveFallsBackToCatalog(t *testing.T) {
	songs := catalog(3)
	sel := newSelector(songs)

	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{AdaptiveType: model.AdaptiveWeakest})
	assert.Equal(t, 3, sel.Count(), "no snapshot")

	snap := model.Snapshot{"s0": {PlayCount: 1, CorrectCount: 1, LastAttemptCorrect: boolPtr(true)}}
	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{Snapshot: snap, AdaptiveType: "hardest"})
	assert.Equal(t, 3, sel.Count(), "unknown type")

	sel.ApplyFilter(model.ModeAdaptiveTrain, Params{Snapshot: snap, AdaptiveType: model.AdaptiveWeakest})
	assert.Equal(t, 3, sel.Count(), "empty result")
}

func TestAlbumsUniqueInOrder(t *testing.T) {
	songs := append(catalog(4), model.Song{ID: "x", Title: "No album"})
	sel := newSelector(songs)
	assert.Equal(t, []string{"19", "21", "25"}, sel.Albums())
	assert.Len(t, sel.SongIDs(), 5)
}
