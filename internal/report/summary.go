package report

import (
	"fmt"
	"strings"
	"time"

	"wavbatch/internal/ledger"
)

// Summary is the content of the daily status mail.
type Summary struct {
	Date   time.Time
	Counts ledger.Counts
	// Fields below describe the current run and are empty for report-only
	// invocations.
	Fetched    int
	Converted  int
	Failed     int
	Deferred   []string
	Incomplete []string
	Drifted    []string
}

// DateLabel formats the report date the way the mail shows it.
func (s Summary) DateLabel() string {
	return s.Date.Format("02/01/2006")
}

// Body renders the plain-text mail body. Totals come from the ledger, not
// the reconciled view.
func (s Summary) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date - %s\n", s.DateLabel())
	fmt.Fprintf(&b, "Total files - %d\n", s.Counts.Total())
	fmt.Fprintf(&b, "Processed files - %d\n", s.Counts.Completed)
	fmt.Fprintf(&b, "Failed files - %d\n", s.Counts.Failed)
	fmt.Fprintf(&b, "Deleted files - %d\n", s.Counts.Deleted)
	if s.Counts.Pending > 0 {
		fmt.Fprintf(&b, "Pending files - %d\n", s.Counts.Pending)
	}

	if s.Fetched > 0 || s.Converted > 0 || s.Failed > 0 {
		b.WriteString("\nThis run\n")
		fmt.Fprintf(&b, "Fetched - %d\n", s.Fetched)
		fmt.Fprintf(&b, "Converted - %d\n", s.Converted)
		fmt.Fprintf(&b, "Failed - %d\n", s.Failed)
	}
	writeList(&b, "Recordings left pending", s.Deferred)
	writeList(&b, "Recordings with missing artifacts", s.Incomplete)
	writeList(&b, "Ledger status differs from filesystem", s.Drifted)
	return b.String()
}

func writeList(b *strings.Builder, title string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d)\n", title, len(names))
	for _, name := range names {
		fmt.Fprintf(b, "- %s\n", name)
	}
}

// DriftedNames lists the rows whose reconciled status differs from the
// ledger.
func DriftedNames(rows []Row) []string {
	var names []string
	for _, r := range rows {
		if r.Drifted() {
			names = append(names, r.Record.Name)
		}
	}
	return names
}
