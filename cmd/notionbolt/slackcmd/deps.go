package slackcmd

import (
	"fmt"
	"log/slog"

	"github.com/quailyquaily/notionbolt/integration"
	"github.com/quailyquaily/notionbolt/internal/jobstore"
	"github.com/quailyquaily/notionbolt/scheduler"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	LoggerFromViper    func() (*slog.Logger, error)
	BuildComponents    func(logger *slog.Logger) (*integration.Components, error)
	NewDigestScheduler func(app integration.ReviewRunner, jobs *jobstore.MemoryStore, logger *slog.Logger) (*scheduler.Scheduler, error)
}

var deps Dependencies

func NewCommand(d Dependencies) *cobra.Command {
	deps = d
	return newSlackCmd()
}

func loggerFromViper() (*slog.Logger, error) {
	if deps.LoggerFromViper == nil {
		return nil, fmt.Errorf("LoggerFromViper dependency missing")
	}
	return deps.LoggerFromViper()
}

func buildComponents(logger *slog.Logger) (*integration.Components, error) {
	if deps.BuildComponents == nil {
		return nil, fmt.Errorf("BuildComponents dependency missing")
	}
	return deps.BuildComponents(logger)
}

func newDigestScheduler(app integration.ReviewRunner, jobs *jobstore.MemoryStore, logger *slog.Logger) (*scheduler.Scheduler, error) {
	if deps.NewDigestScheduler == nil {
		return nil, nil
	}
	return deps.NewDigestScheduler(app, jobs, logger)
}
