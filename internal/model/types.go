// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Song is an immutable catalog entry.
type Song struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Album             string   `json:"album"`
	FilePath          string   `json:"filePath"`
	AlbumCoverPath    string   `json:"albumCoverPath"`
	AlternativeTitles []string `json:"alternativeTitles,omitempty"`
}

// PerformanceStat stores per-song outcome counters.
type PerformanceStat struct {
	PlayCount           int   `json:"playCount"`
	CorrectCount        int   `json:"correctCount"`
	SkipCount           int   `json:"skipCount"`
	EndedCount          int   `json:"endedCount"`
	TotalCorrectTimeMs  int64 `json:"totalCorrectTimeMs"`
	LastAttemptCorrect  *bool `json:"lastAttemptCorrect"`
	LastPlayedTimestamp int64 `json:"lastPlayedTimestamp"`
}

// CorrectRatio returns correctCount/playCount, or 0 when the song was never played.
func (s PerformanceStat) CorrectRatio() float64 {
	if s.PlayCount <= 0 {
		return 0
	}
	return float64(s.CorrectCount) / float64(s.PlayCount)
}

// LastAttemptFailed reports whether the last attempt is known to be a miss.
func (s PerformanceStat) LastAttemptFailed() bool {
	return s.LastAttemptCorrect != nil && !*s.LastAttemptCorrect
}

// Snapshot maps song ids to their stats.
type Snapshot map[string]PerformanceStat

// Outcome is the result of a single attempt as recorded in the performance store.
type Outcome string

// Outcomes reported by the round engine.
const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeEnded     Outcome = "ended"
)

// RoundStatus describes how a round finished.
type RoundStatus int

// Round statuses.
const (
	StatusCorrect RoundStatus = iota
	StatusIncorrect
	StatusSkipped
	StatusEnded
)

func (s RoundStatus) String() string {
	switch s {
	case StatusCorrect:
		return "Correct"
	case StatusIncorrect:
		return "Incorrect"
	case StatusSkipped:
		return "Skipped"
	case StatusEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// RoundRecord is one entry of the session history.
type RoundRecord struct {
	SongID           string
	SongTitle        string
	AlbumCoverPath   string
	GuessedCorrectly bool
	TimeToGuessMs    *int64
	Points           int
	Status           RoundStatus
}

// Mode selects how the song pool is filtered.
type Mode string

// Game modes.
const (
	ModeStandard      Mode = "standard"
	ModeAlbumTrain    Mode = "album-train"
	ModeAdaptiveTrain Mode = "adaptive-train"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeAlbumTrain:
		return ModeAlbumTrain, nil
	case ModeAdaptiveTrain:
		return ModeAdaptiveTrain, nil
	}
	return "", fmt.Errorf("unknown mode %q (expected standard, album-train, adaptive-train)", s)
}

// AdaptiveType selects the adaptive filter policy.
type AdaptiveType string

// Adaptive filter policies.
const (
	AdaptiveWeakest           AdaptiveType = "weakest"
	AdaptiveEasiest           AdaptiveType = "easiest"
	AdaptiveRecentlyIncorrect AdaptiveType = "recently-incorrect"
)

// GameConfig defines session settings.
type GameConfig struct {
	CatalogPath    string
	Rounds         int
	Mode           Mode
	Albums         []string
	AdaptiveType   AdaptiveType
	Snippet        time.Duration
	RetryDelay     time.Duration
	Player         string
	TrackIncorrect bool
}

// ParseAdaptiveType validates an adaptive policy name.
func ParseAdaptiveType(s string) (AdaptiveType, error) {
	switch AdaptiveType(strings.ToLower(strings.TrimSpace(s))) {
	case "", AdaptiveWeakest:
		return AdaptiveWeakest, nil
	case AdaptiveEasiest:
		return AdaptiveEasiest, nil
	case AdaptiveRecentlyIncorrect:
		return AdaptiveRecentlyIncorrect, nil
	}
	return "", fmt.Errorf("unknown adaptive type %q (expected weakest, easiest, recently-incorrect)", s)
}
