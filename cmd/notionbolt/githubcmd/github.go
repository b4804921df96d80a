package githubcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/activity"
	"github.com/quailyquaily/notionbolt/internal/configutil"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	LoggerFromViper func() (*slog.Logger, error)
}

// poster is the slice of *slack.Client used to share the activity list.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

func NewCommand(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "GitHub repository activity",
	}
	cmd.AddCommand(newActivityCmd(d))
	return cmd
}

func newActivityCmd(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity <owner/repo>",
		Short: "List pull requests with their participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := activity.ParseRepo(args[0])
			if err != nil {
				return err
			}
			opts, err := activityOptions(cmd, time.Now())
			if err != nil {
				return err
			}
			logger := slog.Default()
			if d.LoggerFromViper != nil {
				if logger, err = d.LoggerFromViper(); err != nil {
					return err
				}
			}

			httpClient := &http.Client{Timeout: 30 * time.Second}
			client := activity.NewClient(strings.TrimSpace(configutil.FlagOrViperString(cmd, "token", "github.token")), httpClient)
			if base := strings.TrimSpace(configutil.FlagOrViperString(cmd, "api-url", "github.api_url")); base != "" {
				if client, err = client.WithBaseURL(base); err != nil {
					return err
				}
			}
			items, err := client.PullRequests(cmd.Context(), owner, repo, opts)
			if err != nil {
				return err
			}
			logger.Info("github_activity_loaded", "repo", owner+"/"+repo, "pulls", len(items))

			asJSON, _ := cmd.Flags().GetBool("json")
			if err := writeActivity(cmd.OutOrStdout(), items, asJSON); err != nil {
				return err
			}

			channel, _ := cmd.Flags().GetString("post-channel")
			if channel = strings.TrimSpace(channel); channel == "" {
				return nil
			}
			token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if token == "" {
				return fmt.Errorf("--post-channel needs slack.bot_token")
			}
			api := slack.New(token, slack.OptionHTTPClient(httpClient))
			return postActivity(cmd.Context(), api, channel, owner+"/"+repo, items)
		},
	}
	cmd.Flags().String("token", "", "GitHub token. Defaults to github.token.")
	cmd.Flags().String("api-url", "", "GitHub API base URL for GitHub Enterprise.")
	cmd.Flags().String("state", "open", "Pull request state: open, closed or all.")
	cmd.Flags().Duration("since", 0, "Only pull requests updated within this window, e.g. 168h. 0 means no limit.")
	cmd.Flags().Int("limit", 30, "Maximum pull requests to list.")
	cmd.Flags().Bool("json", false, "Print JSON.")
	cmd.Flags().String("post-channel", "", "Also post the list to this Slack channel id.")
	cmd.Flags().String("slack-bot-token", "", "Slack bot token used with --post-channel.")
	return cmd
}

func activityOptions(cmd *cobra.Command, now time.Time) (activity.Options, error) {
	state, _ := cmd.Flags().GetString("state")
	state = strings.ToLower(strings.TrimSpace(state))
	switch state {
	case "open", "closed", "all":
	default:
		return activity.Options{}, fmt.Errorf("invalid --state %q: expected open, closed or all", state)
	}
	since, _ := cmd.Flags().GetDuration("since")
	if since < 0 {
		return activity.Options{}, fmt.Errorf("--since must not be negative")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return activity.Options{}, fmt.Errorf("--limit must be positive")
	}
	opts := activity.Options{State: state, Limit: limit}
	if since > 0 {
		opts.Since = now.Add(-since)
	}
	return opts, nil
}

func writeActivity(w io.Writer, items []activity.PullActivity, asJSON bool) error {
	if asJSON {
		if items == nil {
			items = []activity.PullActivity{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no pull requests")
		return err
	}
	_, err := fmt.Fprintln(w, activity.Format(items))
	return err
}

func postActivity(ctx context.Context, api poster, channel, repo string, items []activity.PullActivity) error {
	text := fmt.Sprintf("*%s* pull requests\n%s", repo, activity.Format(items))
	if len(items) == 0 {
		text = fmt.Sprintf("*%s* has no matching pull requests", repo)
	}
	_, _, err := api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to %s: %w", channel, err)
	}
	return nil
}
