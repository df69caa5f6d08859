package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// RenderReport prints overall accuracy and the best/worst song tables.
func RenderReport(w io.Writer, m Metrics) error {
	if m.TotalPlays == 0 {
		_, err := fmt.Fprintln(w, "No performance data yet. Play a few rounds first.")
		return err
	}
	if _, err := fmt.Fprintf(w, "Total plays: %d\n", m.TotalPlays); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Overall accuracy: %.1f%%\n\n", m.OverallAccuracy); err != nil {
		return err
	}
	if err := renderSongTable(w, "Best songs", m.BestSongs); err != nil {
		return err
	}
	return renderSongTable(w, "Worst songs", m.WorstSongs)
}

func renderSongTable(w io.Writer, title string, songs []SongMetric) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(songs) == 0 {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Song", "Accuracy", "Score", "Plays", "Correct", "Skipped", "Ended", "Avg Time"})
	for _, s := range songs {
		if err := table.Append([]string{
			s.Title,
			fmt.Sprintf("%.1f%%", s.Accuracy*100),
			fmt.Sprintf("%.1f", s.Score),
			strconv.Itoa(s.PlayCount),
			strconv.Itoa(s.CorrectCount),
			strconv.Itoa(s.SkipCount),
			strconv.Itoa(s.EndedCount),
			formatAvgTime(s.AvgCorrectTimeMs),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func formatAvgTime(ms float64) string {
	if ms <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fs", ms/1000)
}
