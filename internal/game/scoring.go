package game

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/verte-zerg/tunequiz/internal/model"
)

const (
	basePoints    = 100
	minPoints     = 10
	decayInterval = 5000
	defaultRounds = 10
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CalculatePoints returns the award for a correct guess after elapsedMs.
// Points halve for every started five second interval past the first, with a floor of 10.
func CalculatePoints(elapsedMs int64) int {
	if elapsedMs <= decayInterval {
		return basePoints
	}
	intervals := (elapsedMs - 1) / decayInterval
	points := float64(basePoints)
	for i := int64(0); i < intervals && points >= minPoints; i++ {
		points /= 2
	}
	return max(minPoints, int(math.Floor(points)))
}

// Normalize lowercases s, drops everything but ASCII letters, digits and
// whitespace, and collapses whitespace runs. Unicode spaces count as whitespace.
func Normalize(s string) string {
	s = strings.Map(asciiSpace, strings.ToLower(strings.TrimSpace(s)))
	s = nonAlnum.ReplaceAllString(s, "")
	return whitespace.ReplaceAllString(s, " ")
}

func asciiSpace(r rune) rune {
	if r == '\v' || r == '\ufeff' || (r > unicode.MaxASCII && unicode.IsSpace(r)) {
		return ' '
	}
	return r
}

// Matches reports whether guess names song by its title or an alternative title.
func Matches(song model.Song, guess string) bool {
	g := Normalize(guess)
	if g == Normalize(song.Title) {
		return true
	}
	for _, alt := range song.AlternativeTitles {
		if g == Normalize(alt) {
			return true
		}
	}
	return false
}
