package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/scicheck/internal/types"
)

// HistoryMarkdown formats the question log as a markdown document.
func HistoryMarkdown(entries []types.HistoryEntry) string {
	var b strings.Builder

	b.WriteString("# Question history\n")
	fmt.Fprintf(&b, "> Exported %s\n\n", time.Now().Format("2006-01-02 15:04"))

	if len(entries) == 0 {
		b.WriteString("_No questions asked yet._\n")
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s (%s) — %s\n", e.ID, e.Question, Answers(e.AnswersCount), relativeTime(e.Date))
	}
	return b.String()
}

// Answers renders an answer count.
func Answers(n int) string {
	if n == 1 {
		return "1 answer"
	}
	return fmt.Sprintf("%d answers", n)
}

// Citations renders a citation count; unknown counts get their own wording.
func Citations(n int) string {
	if n < 0 {
		return "Number of citations unknown"
	}
	return fmt.Sprintf("%d Citations", n)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
