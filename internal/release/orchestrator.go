package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seaward/stevedore/internal/config"
	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/models"
)

// Mode selects which component workflows a run executes. Parsed once
// from the CLI arguments and matched exhaustively.
type Mode int

const (
	ModeAll Mode = iota
	ModeFrontendOnly
	ModeBackendOnly
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeFrontendOnly:
		return "frontend-only"
	case ModeBackendOnly:
		return "backend-only"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrReleaseFailed reports that at least one component workflow failed.
var ErrReleaseFailed = errors.New("release failed")

// PrereqChecker verifies the toolchain before any workflow runs.
type PrereqChecker interface {
	Check() error
}

// ComponentWorkflow releases one component.
type ComponentWorkflow interface {
	Release(ctx context.Context, component models.Component) models.WorkflowResult
}

// Remover removes image references best-effort.
type Remover interface {
	Remove(ctx context.Context, refs []string)
}

// Orchestrator drives a release run end to end: one prerequisite check,
// the selected component workflows in deterministic order, then cleanup
// and a final summary.
type Orchestrator struct {
	Logger   *slog.Logger
	Config   *config.Release
	Prereqs  PrereqChecker
	Workflow ComponentWorkflow
	Cleanup  Remover
}

// Run executes the workflows selected by mode strictly sequentially. A
// failure in one component does not prevent an attempt on the next.
// Returns ErrReleaseFailed if any workflow failed; a prerequisite
// failure aborts before any component starts.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) error {
	logger := logging.Ensure(o.Logger).With("run", uuid.NewString())

	components, err := o.selectComponents(mode)
	if err != nil {
		return err
	}

	logger.Info("starting release",
		"mode", mode.String(),
		"registry", o.Config.Registry.URL,
		"tag", o.Config.ImageTag,
	)

	if err := o.Prereqs.Check(); err != nil {
		return fmt.Errorf("prerequisite check: %w", err)
	}

	results := make([]models.WorkflowResult, 0, len(components))
	for _, component := range components {
		results = append(results, o.Workflow.Release(ctx, component))
	}

	o.Cleanup.Remove(ctx, o.imageRefs(components))

	failed := 0
	for _, result := range results {
		if result.Succeeded {
			logger.Info("component succeeded", "component", result.Component.Name)
			continue
		}
		failed++
		logger.Error("component failed",
			"component", result.Component.Name,
			"stage", string(result.FailedStage),
			"message", result.Message,
		)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d workflows failed", ErrReleaseFailed, failed, len(results))
	}
	logger.Info("release succeeded", "components", len(results))
	return nil
}

// selectComponents maps the invocation mode to the release units in
// deterministic order: frontend first, then backend.
func (o *Orchestrator) selectComponents(mode Mode) ([]models.Component, error) {
	switch mode {
	case ModeAll:
		return []models.Component{o.Config.FrontendComponent(), o.Config.BackendComponent()}, nil
	case ModeFrontendOnly:
		return []models.Component{o.Config.FrontendComponent()}, nil
	case ModeBackendOnly:
		return []models.Component{o.Config.BackendComponent()}, nil
	default:
		return nil, fmt.Errorf("unknown release mode %q", mode.String())
	}
}

// imageRefs lists the local and remote references a run may have left
// behind, for the cleanup stage.
func (o *Orchestrator) imageRefs(components []models.Component) []string {
	refs := make([]string, 0, len(components)*2)
	for _, component := range components {
		local := models.LocalImage{Name: component.ImageName, Tag: o.Config.ImageTag}
		remote := models.ImageReference{
			Registry:   o.Config.Registry.URL,
			Repository: component.ImageName,
			Tag:        o.Config.ImageTag,
		}
		refs = append(refs, local.Ref(), remote.String())
	}
	return refs
}
