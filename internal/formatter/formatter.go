// package formatter renders queue, now-playing and history data as text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// Format is an output encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts the common aliases (txt, md).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return "md"
	case CSV:
		return "csv"
	case JSON:
		return "json"
	default:
		return "txt"
	}
}

// QueueToCSV converts a queue to CSV with columns: Position, QueueID, Title, Artist, Album, Duration, Votes, AddedBy
func QueueToCSV(q models.Queue) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "QueueID", "Title", "Artist", "Album", "Duration", "Votes", "AddedBy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, it := range q {
		record := []string{
			strconv.Itoa(it.Position + 1),
			it.QueueID,
			it.Title,
			it.Artist,
			it.Album,
			strconv.Itoa(it.Duration),
			strconv.Itoa(it.Votes),
			it.AddedBy,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// QueueToMarkdown renders a queue as a Markdown table under a heading.
func QueueToMarkdown(title string, q models.Queue) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(q))
	fmt.Fprintf(&buf, "**Length**: %s\n\n", shared.FormatDuration(totalDuration(q)))

	if len(q) == 0 {
		buf.WriteString("_The queue is empty._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Track | Artist | Length | Votes |\n")
	buf.WriteString("|---|-------|--------|--------|-------|\n")
	for _, it := range q {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			it.Position+1,
			escapeCell(it.Title),
			escapeCell(it.Artist),
			shared.FormatDuration(it.Duration),
			formatVotes(it),
		)
	}

	return buf.Bytes(), nil
}

// QueueToText renders one line per item.
func QueueToText(q models.Queue) ([]byte, error) {
	var buf bytes.Buffer

	if len(q) == 0 {
		buf.WriteString("Queue is empty\n")
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "Queue: %d tracks (%s)\n\n", len(q), shared.FormatDuration(totalDuration(q)))
	for _, it := range q {
		fmt.Fprintf(&buf, "%2d. %s - %s [%s] %s  (%s)\n",
			it.Position+1, it.Artist, it.Title, shared.FormatDuration(it.Duration), formatVotes(it), it.QueueID)
	}

	return buf.Bytes(), nil
}

// RenderQueue encodes q in format f.
func RenderQueue(f Format, title string, q models.Queue) ([]byte, error) {
	switch f {
	case Markdown:
		return QueueToMarkdown(title, q)
	case CSV:
		return QueueToCSV(q)
	case JSON:
		return shared.MarshalJSON(q, true)
	default:
		return QueueToText(q)
	}
}

// NowPlaying renders the current track with a progress bar of width cells.
func NowPlaying(track *models.Track, st models.PlaybackState, width int) string {
	if track == nil {
		return "Nothing playing"
	}
	if width <= 0 {
		width = 30
	}

	icon := "▶"
	switch {
	case st.IsBuffering:
		icon = "…"
	case !st.IsPlaying:
		icon = "⏸"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s - %s\n", icon, track.Artist, track.Title)
	fmt.Fprintf(&b, "%s %s %s", shared.FormatSeconds(st.CurrentTime), ProgressBar(st.CurrentTime, st.Duration, width), shared.FormatSeconds(st.Duration))
	return b.String()
}

// ProgressBar draws pos/total as a bar of width cells. A zero total draws an empty bar.
func ProgressBar(pos, total float64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(pos / total * float64(width))
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// HistoryToText renders play history newest first.
func HistoryToText(entries []models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	if len(entries) == 0 {
		buf.WriteString("No history yet\n")
		return buf.Bytes(), nil
	}
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s  %-6s  %s - %s", e.PlayedAt.Local().Format("2006-01-02 15:04"), e.Source, e.Track.Artist, e.Track.Title)
		if e.HiveID != "" {
			fmt.Fprintf(&buf, "  [%s]", e.HiveID)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// WriteQueueExport writes q to path, defaulting to queue.<ext> when path is empty.
func WriteQueueExport(f Format, title string, q models.Queue, path string) (string, error) {
	if path == "" {
		path = "queue." + f.Extension()
	}

	data, err := RenderQueue(f, title, q)
	if err != nil {
		return "", fmt.Errorf("failed to render queue: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write queue export: %w", err)
	}
	return path, nil
}

func totalDuration(q models.Queue) int {
	total := 0
	for _, it := range q {
		total += it.Duration
	}
	return total
}

func formatVotes(it models.QueueItem) string {
	s := fmt.Sprintf("%+d", it.Votes)
	switch it.UserVote {
	case models.VoteUp:
		s += " ↑"
	case models.VoteDown:
		s += " ↓"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
