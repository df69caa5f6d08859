package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tunequiz/internal/model"
)

const maxChipTitle = 24

type styledChunk struct {
	s       string
	width   int
	isSpace bool
}

// buildHistoryChunks renders one chip per round separated by spaces.
func buildHistoryChunks(history []model.RoundRecord) []styledChunk {
	out := make([]styledChunk, 0, len(history)*2)
	for i, rec := range history {
		if i > 0 {
			out = append(out, styledChunk{s: " ", width: 1, isSpace: true})
		}
		text := chipText(i+1, rec)
		out = append(out, styledChunk{
			s:     chipStyle(rec.Status).Render(text),
			width: runewidth.StringWidth(text),
		})
	}
	return out
}

func chipText(round int, rec model.RoundRecord) string {
	title := runewidth.Truncate(rec.SongTitle, maxChipTitle, "…")
	switch rec.Status {
	case model.StatusCorrect:
		return fmt.Sprintf("%d.✓ %s +%d", round, title, rec.Points)
	case model.StatusSkipped:
		return fmt.Sprintf("%d.» %s", round, title)
	case model.StatusEnded:
		return fmt.Sprintf("%d.◷ %s", round, title)
	default:
		return fmt.Sprintf("%d.✗ %s", round, title)
	}
}

func renderChunks(chunks []styledChunk) string {
	var b strings.Builder
	for _, item := range chunks {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapChunks breaks lines at space chunks so that no line exceeds width.
// A chunk wider than width gets a line of its own.
func wrapChunks(chunks []styledChunk, width int) string {
	if width <= 0 {
		return renderChunks(chunks)
	}
	var out strings.Builder
	line := make([]styledChunk, 0, len(chunks))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(chunks); {
		item := chunks[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if item.isSpace {
				out.WriteString(renderChunks(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
				i++
				continue
			}
			if lastSpaceIdx >= 0 {
				out.WriteString(renderChunks(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledChunk{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderChunks(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderChunks(line))
	return out.String()
}

func lineWidthOf(line []styledChunk) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledChunk) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
