package toolchain

import (
	"fmt"
	"log/slog"

	"github.com/seaward/stevedore/internal/logging"
)

// MissingToolError reports a required tool that could not be resolved on
// the execution path.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("required tool %q not found on PATH", e.Tool)
}

// PrerequisiteChecker verifies the external toolchain before any
// side-effecting release step runs.
type PrerequisiteChecker struct {
	Logger *slog.Logger
	Runner Runner
}

// Check resolves the container build tool and the registry CLI; either
// missing is fatal. A missing package manager only degrades the optional
// application pre-build path and is reported as a warning.
func (c *PrerequisiteChecker) Check() error {
	logger := logging.Ensure(c.Logger)

	for _, tool := range []string{ToolDocker, ToolAWS} {
		path, err := c.Runner.LookPath(tool)
		if err != nil {
			return &MissingToolError{Tool: tool}
		}
		logger.Debug("resolved tool", "tool", tool, "path", path)
	}

	if _, err := c.Runner.LookPath(ToolBun); err != nil {
		logger.Warn("package manager not found, application pre-build unavailable", "tool", ToolBun)
	}

	return nil
}
