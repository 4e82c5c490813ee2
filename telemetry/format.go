package telemetry

import (
	"fmt"
	"io"
	"time"
)

// slowThreshold marks operations worth highlighting in reports.
const slowThreshold = 100 * time.Millisecond

// writeTree prints a span and its descendants:
//
//	check ledger.json: 12ms
//	├─ ledger.load (120 records): 3ms
//	└─ dashboard.build: 8ms
//	   ├─ ledger.totals: 0ms
//	   └─ ledger.partition: 1ms
func writeTree(w io.Writer, root *span) {
	_, _ = fmt.Fprintf(w, "%s: %s\n", root.name, formatDuration(root.duration()))
	for i, child := range root.children {
		writeNode(w, child, "", i == len(root.children)-1)
	}
}

func writeNode(w io.Writer, s *span, prefix string, last bool) {
	branch, extension := "├─ ", "│  "
	if last {
		branch, extension = "└─ ", "   "
	}

	marker := ""
	if s.duration() >= slowThreshold {
		marker = " (slow)"
	}
	_, _ = fmt.Fprintf(w, "%s%s%s: %s%s\n", prefix, branch, s.name, formatDuration(s.duration()), marker)

	for i, child := range s.children {
		writeNode(w, child, prefix+extension, i == len(s.children)-1)
	}
}

// formatDuration shows milliseconds below one second, seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
