package reportcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/quailyquaily/notionbolt/reports"
	"github.com/quailyquaily/notionbolt/summary"
	"golang.org/x/term"
)

const tableContentRunes = 60

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeReports(w io.Writer, items []reports.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if items == nil {
			items = []reports.Report{}
		}
		return enc.Encode(items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tUSER\tTAGS\tCONTENT")
	for _, r := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.PeriodText, r.UserID, strings.Join(r.Tags, ","), clip(r.Content, tableContentRunes))
	}
	return tw.Flush()
}

func writeReview(w io.Writer, review summary.Review, weekly bool) error {
	var b strings.Builder
	if weekly {
		for _, wk := range review.Weekly {
			fmt.Fprintf(&b, "## %s (%d reports)\n%s\n\n", wk.Period, wk.Reports, wk.Summary)
		}
		fmt.Fprintf(&b, "## %d月\n", review.Month)
	}
	b.WriteString(review.Text)
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
