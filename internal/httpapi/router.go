package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const maxBodyBytes = 1 << 20

// SlackHandler is implemented by *slackapp.App.
type SlackHandler interface {
	HandleEventsAPI(ctx context.Context, raw json.RawMessage) error
	HandleInteraction(ctx context.Context, cb slack.InteractionCallback) (any, error)
	HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) error
}

type Options struct {
	Logger   *slog.Logger
	Service  string
	Gatherer prometheus.Gatherer

	Jobs      jobstore.Reader
	JobsToken string

	// Slack routes are mounted only when both are set.
	Slack         SlackHandler
	SigningSecret string
}

func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	service := opts.Service
	if service == "" {
		service = "notionbolt"
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": service})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.Jobs != nil {
		jobstore.RegisterRoutes(r, opts.Jobs, opts.JobsToken)
	}
	if opts.Slack != nil && opts.SigningSecret != "" {
		h := &slackRoutes{app: opts.Slack, logger: logger}
		g := r.Group("/slack", verifySlackSignature(opts.SigningSecret, logger))
		g.POST("/events", h.events)
		g.POST("/interactive", h.interactive)
		g.POST("/commands", h.commands)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// verifySlackSignature checks X-Slack-Signature and leaves the body readable for the handler.
func verifySlackSignature(secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		_ = c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body"})
			return
		}
		verifier, err := slack.NewSecretsVerifier(c.Request.Header, secret)
		if err == nil {
			_, _ = verifier.Write(body)
			err = verifier.Ensure()
		}
		if err != nil {
			logger.Warn("slack_signature_invalid", "path", c.Request.URL.Path, "error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set("raw_body", body)
		c.Next()
	}
}

type slackRoutes struct {
	app    SlackHandler
	logger *slog.Logger
}

func rawBody(c *gin.Context) []byte {
	if v, ok := c.Get("raw_body"); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}

func (h *slackRoutes) events(c *gin.Context) {
	body := rawBody(c)
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil && ev.Type != slackevents.CallbackEvent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	switch ev.Type {
	case slackevents.URLVerification:
		challenge, ok := ev.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge"})
			return
		}
		c.String(http.StatusOK, challenge.Challenge)
	case slackevents.CallbackEvent:
		if err := h.app.HandleEventsAPI(c.Request.Context(), json.RawMessage(body)); err != nil {
			h.logger.Warn("slack_event_error", "error", err.Error())
		}
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusOK)
	}
}

func (h *slackRoutes) interactive(c *gin.Context) {
	raw := c.PostForm("payload")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing payload"})
		return
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.app.HandleInteraction(c.Request.Context(), cb)
	if err != nil {
		h.logger.Warn("slack_interaction_error", "type", string(cb.Type), "error", err.Error())
	}
	if resp != nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.Status(http.StatusOK)
}

func (h *slackRoutes) commands(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command"})
		return
	}
	if err := h.app.HandleSlashCommand(c.Request.Context(), cmd); err != nil {
		h.logger.Warn("slack_command_error", "command", cmd.Command, "error", err.Error())
	}
	c.Status(http.StatusOK)
}
