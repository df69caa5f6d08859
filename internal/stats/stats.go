// Package stats derives performance summaries from per-song stats.
package stats

import (
	"math"
	"sort"

	"github.com/verte-zerg/tunequiz/internal/model"
)

const (
	topN = 5
	// Songs with fewer plays than this get their score scaled by playCount/rampPlays.
	rampPlays = 3
)

// UnknownTitle labels stats whose song is missing from the catalog.
const UnknownTitle = "Unknown Song"

// SongMetric summarizes one song's performance.
type SongMetric struct {
	SongID              string
	Title               string
	Album               string
	Accuracy            float64
	Score               float64
	PlayCount           int
	CorrectCount        int
	SkipCount           int
	EndedCount          int
	AvgCorrectTimeMs    float64
	LastPlayedTimestamp int64
}

// Metrics is the result of ComputeMetrics.
type Metrics struct {
	BestSongs       []SongMetric
	WorstSongs      []SongMetric
	OverallAccuracy float64
	TotalPlays      int
	TotalCorrect    int
	// Songs lists every tracked song in best-first order.
	Songs []SongMetric
}

// ComputeMetrics ranks songs by damped accuracy and computes overall accuracy.
func ComputeMetrics(catalog []model.Song, snap model.Snapshot) Metrics {
	if len(snap) == 0 {
		return Metrics{BestSongs: []SongMetric{}, WorstSongs: []SongMetric{}, Songs: []SongMetric{}}
	}
	byID := make(map[string]model.Song, len(catalog))
	for _, song := range catalog {
		byID[song.ID] = song
	}

	songStats := make([]SongMetric, 0, len(snap))
	totalPlays := 0
	totalCorrect := 0
	for id, st := range snap {
		totalPlays += st.PlayCount
		totalCorrect += st.CorrectCount

		song, ok := byID[id]
		if !ok {
			song.Title = UnknownTitle
		}
		acc := Accuracy(st)
		avg := 0.0
		if st.CorrectCount > 0 && st.TotalCorrectTimeMs > 0 {
			avg = float64(st.TotalCorrectTimeMs) / float64(st.CorrectCount)
		}
		songStats = append(songStats, SongMetric{
			SongID:              id,
			Title:               song.Title,
			Album:               song.Album,
			Accuracy:            acc,
			Score:               Score(st),
			PlayCount:           st.PlayCount,
			CorrectCount:        st.CorrectCount,
			SkipCount:           st.SkipCount,
			EndedCount:          st.EndedCount,
			AvgCorrectTimeMs:    avg,
			LastPlayedTimestamp: st.LastPlayedTimestamp,
		})
	}

	best := append([]SongMetric(nil), songStats...)
	sort.Slice(best, func(i, j int) bool {
		if best[i].Score != best[j].Score {
			return best[i].Score > best[j].Score
		}
		return newerFirst(best[i], best[j])
	})

	worst := make([]SongMetric, 0, len(songStats))
	for _, s := range songStats {
		if s.PlayCount > 0 {
			worst = append(worst, s)
		}
	}
	sort.Slice(worst, func(i, j int) bool {
		if worst[i].Score != worst[j].Score {
			return worst[i].Score < worst[j].Score
		}
		return newerFirst(worst[i], worst[j])
	})

	overall := 0.0
	if totalPlays > 0 {
		overall = math.Round(float64(totalCorrect)/float64(totalPlays)*100*10) / 10
	}
	return Metrics{
		BestSongs:       truncate(best, topN),
		WorstSongs:      truncate(worst, topN),
		OverallAccuracy: overall,
		TotalPlays:      totalPlays,
		TotalCorrect:    totalCorrect,
		Songs:           best,
	}
}

// Accuracy is correct guesses over plays that were neither skipped nor ended.
func Accuracy(st model.PerformanceStat) float64 {
	if st.PlayCount <= 0 {
		return 0
	}
	relevant := st.PlayCount - st.SkipCount - st.EndedCount
	if relevant <= 0 {
		return 0
	}
	return float64(st.CorrectCount) / float64(relevant)
}

// Score is accuracy*100, scaled down for songs with few plays.
func Score(st model.PerformanceStat) float64 {
	score := Accuracy(st) * 100
	if st.PlayCount < rampPlays {
		score *= float64(st.PlayCount) / rampPlays
	}
	return score
}

func newerFirst(a, b SongMetric) bool {
	if a.LastPlayedTimestamp != b.LastPlayedTimestamp {
		return a.LastPlayedTimestamp > b.LastPlayedTimestamp
	}
	return a.SongID < b.SongID
}

func truncate(in []SongMetric, n int) []SongMetric {
	if len(in) > n {
		return in[:n]
	}
	return in
}
