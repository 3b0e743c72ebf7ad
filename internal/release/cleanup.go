package release

import (
	"context"
	"log/slog"

	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/toolchain"
)

// Cleanup removes local and remote-tagged image references after a run.
// Strictly best-effort: individual failures (an image already absent,
// for instance) are logged as warnings and never affect the recorded
// release outcome.
type Cleanup struct {
	Logger *slog.Logger
	Runner toolchain.Runner
}

// Remove attempts removal of each reference independently.
func (c *Cleanup) Remove(ctx context.Context, refs []string) {
	logger := logging.Ensure(c.Logger)

	for _, ref := range refs {
		if _, err := c.Runner.Output(ctx, toolchain.ToolDocker, "rmi", ref); err != nil {
			logger.Warn("cleanup skipped image", "ref", ref, "error", err)
			continue
		}
		logger.Info("removed local image reference", "ref", ref)
	}
}
