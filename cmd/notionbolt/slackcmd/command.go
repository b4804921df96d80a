package slackcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quailyquaily/notionbolt/internal/configutil"
	"github.com/quailyquaily/notionbolt/internal/httpapi"
	"github.com/quailyquaily/notionbolt/internal/slackapp"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
)

const reconnectDelay = 2 * time.Second

func newSlackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slack",
		Short: "Run the Slack bot with Socket Mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-bot-token", "slack.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing slack.bot_token (set via --slack-bot-token or NOTIONBOLT_SLACK_BOT_TOKEN)")
			}
			appToken := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-app-token", "slack.app_token"))
			if appToken == "" {
				return fmt.Errorf("missing slack.app_token (set via --slack-app-token or NOTIONBOLT_SLACK_APP_TOKEN)")
			}
			allowedTeams := slackapp.ToAllowlist(configutil.FlagOrViperStringArray(cmd, "slack-allowed-team-id", "slack.allowed_team_ids"))
			allowedChannels := slackapp.ToAllowlist(configutil.FlagOrViperStringArray(cmd, "slack-allowed-channel-id", "slack.allowed_channel_ids"))

			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			comps, err := buildComponents(logger)
			if err != nil {
				return err
			}

			api := slack.New(botToken,
				slack.OptionAppLevelToken(appToken),
				slack.OptionHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			)
			auth, err := api.AuthTestContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("slack auth.test: %w", err)
			}
			botUserID := strings.TrimSpace(auth.UserID)
			if botUserID == "" {
				return fmt.Errorf("slack auth.test returned empty user_id")
			}
			if len(allowedTeams) == 0 && strings.TrimSpace(auth.TeamID) != "" {
				allowedTeams[strings.TrimSpace(auth.TeamID)] = true
			}

			taskTimeout := configutil.FlagOrViperDuration(cmd, "slack-task-timeout", "slack.task_timeout")
			maxConc := configutil.FlagOrViperInt(cmd, "slack-max-concurrency", "slack.max_concurrency")
			app, err := slackapp.New(slackapp.Options{
				Messenger:       slackapp.NewSlackMessenger(api, logger),
				Reports:         comps.Reports,
				Summarizer:      comps.Summarizer,
				Calendar:        comps.Calendar,
				Jobs:            comps.Jobs,
				Metrics:         comps.Metrics,
				Logger:          logger,
				BotUserID:       botUserID,
				AllowedTeams:    allowedTeams,
				AllowedChannels: allowedChannels,
				SlashCommand:    configutil.FlagOrViperString(cmd, "slack-slash-command", "slack.slash_command"),
				MaxConcurrency:  maxConc,
				JobTimeout:      taskTimeout,
				StreamInterval:  configutil.FlagOrViperDuration(cmd, "", "slack.stream_interval"),
			})
			if err != nil {
				return err
			}
			defer app.Close()

			sched, err := newDigestScheduler(app, comps.Jobs, logger)
			if err != nil {
				return err
			}
			if sched != nil {
				if err := sched.Start(cmd.Context()); err != nil {
					return err
				}
				defer sched.Wait()
			}

			if listen := strings.TrimSpace(configutil.FlagOrViperString(cmd, "health-listen", "health.listen")); listen != "" {
				srv := &http.Server{
					Addr: listen,
					Handler: httpapi.NewRouter(httpapi.Options{
						Logger:    logger,
						Service:   "slack",
						Gatherer:  comps.Registry,
						Jobs:      comps.Jobs,
						JobsToken: configutil.FlagOrViperString(cmd, "", "server.auth_token"),
					}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Warn("slack_health_server_error", "addr", listen, "error", err.Error())
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					_ = srv.Shutdown(shutdownCtx)
					cancel()
				}()
			}

			logger.Info("slack_start",
				"bot_user_id", botUserID,
				"allowed_team_ids", len(allowedTeams),
				"allowed_channel_ids", len(allowedChannels),
				"task_timeout", taskTimeout.String(),
				"max_concurrency", maxConc,
			)

			handle := func(env slackapp.Envelope) (any, error) {
				payload, err := app.HandleEnvelope(cmd.Context(), env)
				if err != nil {
					logger.Warn("slack_envelope_error", "type", env.Type, "error", err.Error())
				}
				return payload, err
			}
			return runSocketLoop(cmd.Context(), api, nil, handle, logger)
		},
	}

	cmd.Flags().String("slack-bot-token", "", "Slack bot token (xoxb-...).")
	cmd.Flags().String("slack-app-token", "", "Slack app-level token for Socket Mode (xapp-...).")
	cmd.Flags().StringArray("slack-allowed-team-id", nil, "Allowed Slack team id(s). If empty, defaults to the bot's home team.")
	cmd.Flags().StringArray("slack-allowed-channel-id", nil, "Allowed Slack channel id(s). If empty, allows all channels in allowed teams.")
	cmd.Flags().Duration("slack-task-timeout", 10*time.Minute, "Per-job timeout for reviews and chat replies.")
	cmd.Flags().Int("slack-max-concurrency", 3, "Max number of jobs processed concurrently.")
	cmd.Flags().String("slack-slash-command", "/report", "Slash command that opens the report modal.")
	cmd.Flags().String("health-listen", "", "Optional address for /health, /jobs and /metrics (e.g. 127.0.0.1:8081).")

	return cmd
}

// runSocketLoop keeps a Socket Mode connection open until ctx is done.
func runSocketLoop(ctx context.Context, api socketOpener, dialer *websocket.Dialer, handle envelopeHandler, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			logger.Info("slack_stop", "reason", "context_canceled")
			return nil
		}
		conn, err := connectSocket(ctx, api, dialer)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("slack_stop", "reason", "context_canceled")
				return nil
			}
			logger.Warn("slack_socket_connect_error", "error", err.Error())
			if err := sleepWithContext(ctx, reconnectDelay); err != nil {
				return nil
			}
			continue
		}
		logger.Info("slack_socket_connected")
		readErr := consumeSlackSocket(ctx, conn, handle)
		_ = conn.Close()
		switch {
		case errors.Is(readErr, errSocketDisconnect):
			logger.Info("slack_socket_disconnect_requested")
		case readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded):
			logger.Warn("slack_socket_read_error", "error", readErr.Error())
		}
	}
}
