package reportcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/notionbolt/integration"
	"github.com/quailyquaily/notionbolt/minutes"
	"github.com/quailyquaily/notionbolt/reports"
	"github.com/quailyquaily/notionbolt/summary"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	LoggerFromViper func() (*slog.Logger, error)
	BuildComponents func(logger *slog.Logger, withLLM bool) (*integration.Components, error)
	MinutesReader   func(comps *integration.Components) (*minutes.Reader, error)
}

func NewCommand(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read, write and summarise weekly reports in Notion",
	}
	cmd.AddCommand(
		newListCmd(d),
		newAddCmd(d),
		newDeleteCmd(d),
		newSummarizeCmd(d),
		newMinutesCmd(d),
	)
	return cmd
}

func (d Dependencies) components(withLLM bool) (*integration.Components, error) {
	if d.LoggerFromViper == nil || d.BuildComponents == nil {
		return nil, fmt.Errorf("report dependencies missing")
	}
	logger, err := d.LoggerFromViper()
	if err != nil {
		return nil, err
	}
	return d.BuildComponents(logger, withLLM)
}

func parsePeriods(raw []string) ([]reports.Period, error) {
	var out []reports.Period
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			p, err := reports.ParsePeriod(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func newListCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, optionally filtered by period",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawPeriods, _ := cmd.Flags().GetStringArray("period")
			periods, err := parsePeriods(rawPeriods)
			if err != nil {
				return err
			}
			comps, err := d.components(false)
			if err != nil {
				return err
			}
			flt := reports.Filter{Periods: periods}
			prepared, _ := cmd.Flags().GetBool("prepared")
			var items []reports.Report
			if prepared {
				items, err = comps.Reports.FetchPrepared(cmd.Context(), flt)
			} else {
				items, err = comps.Reports.Fetch(cmd.Context(), flt)
			}
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return writeReports(cmd.OutOrStdout(), items, asJSON || !isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringArray("period", nil, "Period(s) to include, e.g. 1Q-03. Repeatable or comma separated.")
	cmd.Flags().Bool("prepared", false, "Drop planning rows and empty reports like the summarizer does.")
	cmd.Flags().Bool("json", false, "Print JSON even on a terminal.")
	return cmd
}

func newAddCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append one report row",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			rawPeriod, _ := cmd.Flags().GetString("period")
			rawTags, _ := cmd.Flags().GetStringArray("tag")
			content, _ := cmd.Flags().GetString("content")
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user is required")
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("--content is required")
			}
			period, err := reports.ParsePeriod(rawPeriod)
			if err != nil {
				return err
			}
			var tags []string
			for _, t := range rawTags {
				for _, part := range strings.Split(t, ",") {
					if part = strings.TrimSpace(part); part != "" {
						tags = append(tags, part)
					}
				}
			}
			comps, err := d.components(false)
			if err != nil {
				return err
			}
			id, err := comps.Reports.Append(cmd.Context(), reports.Report{
				UserID:  user,
				Period:  period,
				Tags:    tags,
				Content: content,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().String("user", "", "Slack user id or name stored in the title column.")
	cmd.Flags().String("period", "", "Reporting week, e.g. 1Q-03.")
	cmd.Flags().StringArray("tag", nil, "Tag(s). Repeatable or comma separated.")
	cmd.Flags().String("content", "", "Report body.")
	return cmd
}

func newDeleteCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Archive every row whose column equals a value",
		RunE: func(cmd *cobra.Command, args []string) error {
			column, _ := cmd.Flags().GetString("column")
			value, _ := cmd.Flags().GetString("value")
			yes, _ := cmd.Flags().GetBool("yes")
			if strings.TrimSpace(column) == "" || strings.TrimSpace(value) == "" {
				return fmt.Errorf("--column and --value are required")
			}
			if !yes {
				return fmt.Errorf("refusing to archive rows without --yes")
			}
			comps, err := d.components(false)
			if err != nil {
				return err
			}
			n, err := comps.Reports.Delete(cmd.Context(), column, value)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "archived %d row(s)\n", n)
			return err
		},
	}
	cmd.Flags().String("column", "", "Column name to match.")
	cmd.Flags().String("value", "", "Plain text value to match.")
	cmd.Flags().Bool("yes", false, "Confirm archiving.")
	return cmd
}

func newSummarizeCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Print the monthly review for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetInt("month")
			comps, err := d.components(true)
			if err != nil {
				return err
			}
			plan, err := comps.Calendar.Month(month)
			if err != nil {
				return err
			}
			errOut := cmd.ErrOrStderr()
			review, err := comps.Summarizer.Review(cmd.Context(), comps.Reports, summary.ReviewRequest{
				Month: month,
				Plan:  plan,
				OnProgress: func(_ context.Context, p summary.Progress) error {
					_, err := fmt.Fprintln(errOut, p.Message())
					return err
				},
			})
			if err != nil {
				return err
			}
			weekly, _ := cmd.Flags().GetBool("weekly")
			return writeReview(cmd.OutOrStdout(), review, weekly)
		},
	}
	cmd.Flags().Int("month", 0, "Calendar month (1-12).")
	cmd.Flags().Bool("weekly", false, "Also print each weekly summary.")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newMinutesCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minutes",
		Short: "Read meeting notes from the minutes page",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List dated meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, _, err := d.minutes(false)
			if err != nil {
				return err
			}
			sessions, err := reader.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sessions {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.Date, s.Title); err != nil {
					return err
				}
			}
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "show <date|title>",
		Short: "Print the notes of one meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summarize, _ := cmd.Flags().GetBool("summarize")
			reader, comps, err := d.minutes(summarize)
			if err != nil {
				return err
			}
			notes, err := reader.Notes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				return fmt.Errorf("no notes found for %q", args[0])
			}
			if !summarize {
				for _, line := range notes {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), "・"+line); err != nil {
						return err
					}
				}
				return nil
			}
			text, err := comps.Summarizer.Minutes(cmd.Context(), args[0], notes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	show.Flags().Bool("summarize", false, "Summarise the notes with the LLM.")
	cmd.AddCommand(list, show)
	return cmd
}

func (d Dependencies) minutes(withLLM bool) (*minutes.Reader, *integration.Components, error) {
	comps, err := d.components(withLLM)
	if err != nil {
		return nil, nil, err
	}
	if d.MinutesReader == nil {
		return nil, nil, fmt.Errorf("MinutesReader dependency missing")
	}
	reader, err := d.MinutesReader(comps)
	if err != nil {
		return nil, nil, err
	}
	return reader, comps, nil
}
