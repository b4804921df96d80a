package servecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quailyquaily/notionbolt/integration"
	"github.com/quailyquaily/notionbolt/internal/configutil"
	"github.com/quailyquaily/notionbolt/internal/httpapi"
	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/internal/slackapp"
	"github.com/quailyquaily/notionbolt/scheduler"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	LoggerFromViper    func() (*slog.Logger, error)
	BuildComponents    func(logger *slog.Logger) (*integration.Components, error)
	NewDigestScheduler func(app integration.ReviewRunner, jobs *jobstore.MemoryStore, logger *slog.Logger) (*scheduler.Scheduler, error)
}

func NewCommand(d Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack Events API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.LoggerFromViper == nil || d.BuildComponents == nil {
				return fmt.Errorf("serve dependencies missing")
			}
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or NOTIONBOLT_SLACK_BOT_TOKEN)")
			}
			secret := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-signing-secret", "slack.signing_secret"))
			if secret == "" {
				return fmt.Errorf("missing slack.signing_secret (set via --slack-signing-secret or NOTIONBOLT_SLACK_SIGNING_SECRET)")
			}
			listen := strings.TrimSpace(configutil.FlagOrViperString(cmd, "listen", "server.listen"))
			if listen == "" {
				listen = "127.0.0.1:8080"
			}

			logger, err := d.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			comps, err := d.BuildComponents(logger)
			if err != nil {
				return err
			}

			api := slack.New(botToken, slack.OptionHTTPClient(&http.Client{Timeout: 30 * time.Second}))
			auth, err := api.AuthTestContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("slack auth.test: %w", err)
			}
			allowedTeams := slackapp.ToAllowlist(configutil.FlagOrViperStringArray(cmd, "", "slack.allowed_team_ids"))
			if len(allowedTeams) == 0 && strings.TrimSpace(auth.TeamID) != "" {
				allowedTeams[strings.TrimSpace(auth.TeamID)] = true
			}
			app, err := slackapp.New(slackapp.Options{
				Messenger:       slackapp.NewSlackMessenger(api, logger),
				Reports:         comps.Reports,
				Summarizer:      comps.Summarizer,
				Calendar:        comps.Calendar,
				Jobs:            comps.Jobs,
				Metrics:         comps.Metrics,
				Logger:          logger,
				BotUserID:       auth.UserID,
				AllowedTeams:    allowedTeams,
				AllowedChannels: slackapp.ToAllowlist(configutil.FlagOrViperStringArray(cmd, "", "slack.allowed_channel_ids")),
				SlashCommand:    configutil.FlagOrViperString(cmd, "", "slack.slash_command"),
				MaxConcurrency:  configutil.FlagOrViperInt(cmd, "", "slack.max_concurrency"),
				JobTimeout:      configutil.FlagOrViperDuration(cmd, "", "slack.task_timeout"),
				StreamInterval:  configutil.FlagOrViperDuration(cmd, "", "slack.stream_interval"),
			})
			if err != nil {
				return err
			}
			defer app.Close()

			if d.NewDigestScheduler != nil {
				sched, err := d.NewDigestScheduler(app, comps.Jobs, logger)
				if err != nil {
					return err
				}
				if err := sched.Start(cmd.Context()); err != nil {
					return err
				}
				defer sched.Wait()
			}

			router := httpapi.NewRouter(httpapi.Options{
				Logger:        logger,
				Service:       "serve",
				Gatherer:      comps.Registry,
				Jobs:          comps.Jobs,
				JobsToken:     configutil.FlagOrViperString(cmd, "auth-token", "server.auth_token"),
				Slack:         app,
				SigningSecret: secret,
			})
			return serve(cmd.Context(), listen, router, logger)
		},
	}

	cmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address.")
	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-signing-secret", "", "Slack signing secret used to verify requests.")
	cmd.Flags().String("auth-token", "", "Bearer token for /jobs. Empty disables access.")
	return cmd
}

func serve(ctx context.Context, listen string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("serve_start", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("serve_stop", "reason", ctx.Err().Error())
		return srv.Shutdown(shutdownCtx)
	}
}
