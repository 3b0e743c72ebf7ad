// Package release sequences the per-component build, login, and push
// steps and drives the overall run.
package release

import (
	"context"
	"log/slog"

	"github.com/seaward/stevedore/internal/config"
	"github.com/seaward/stevedore/internal/envfile"
	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/models"
)

// ImageBuilder produces a locally tagged image artifact for a component.
type ImageBuilder interface {
	Build(ctx context.Context, component models.Component, platform, tag string) (models.LocalImage, error)
}

// AppBuilder runs the optional application build before the container build.
type AppBuilder interface {
	Run(ctx context.Context, component models.Component) error
}

// Registry authenticates to the remote registry and pushes local artifacts.
type Registry interface {
	Authenticate(ctx context.Context) error
	TagAndPush(ctx context.Context, local models.LocalImage, remote models.ImageReference) error
}

// Workflow releases a single component: container build (inside an
// environment snapshot scope when the component declares a local
// configuration file), registry login, then tag and push. Each step is
// fatal on failure and short-circuits the remaining steps for this
// component only.
type Workflow struct {
	Logger   *slog.Logger
	Config   *config.Release
	Builder  ImageBuilder
	AppBuild AppBuilder // nil unless the application pre-build is enabled
	Registry Registry
}

// Release runs the full sequence for one component and records the outcome.
func (w *Workflow) Release(ctx context.Context, component models.Component) models.WorkflowResult {
	logger := logging.Ensure(w.Logger).With("component", component.Name)
	logger.Info("releasing component")

	image, stage, err := w.build(ctx, component)
	if err != nil {
		return w.failed(component, stage, err)
	}

	if err := w.Registry.Authenticate(ctx); err != nil {
		return w.failed(component, models.StageAuth, err)
	}

	remote := models.ImageReference{
		Registry:   w.Config.Registry.URL,
		Repository: component.ImageName,
		Tag:        w.Config.ImageTag,
	}
	if err := w.Registry.TagAndPush(ctx, image, remote); err != nil {
		return w.failed(component, models.StagePush, err)
	}

	logger.Info("component released", "remote", remote.String())
	return models.WorkflowResult{Component: component, Succeeded: true}
}

// build runs the optional application pre-build and the container build.
// Both run inside a snapshot scope when the component declares a local
// configuration file, so any transient rewrite of that file is undone on
// every exit path.
func (w *Workflow) build(ctx context.Context, component models.Component) (models.LocalImage, models.StageName, error) {
	var image models.LocalImage
	stage := models.StageBuild

	body := func() error {
		if w.AppBuild != nil && component.HasEnvFile() {
			stage = models.StageAppBuild
			if err := w.AppBuild.Run(ctx, component); err != nil {
				return err
			}
			stage = models.StageBuild
		}

		built, err := w.Builder.Build(ctx, component, w.Config.Platform, w.Config.ImageTag)
		if err != nil {
			return err
		}
		image = built
		return nil
	}

	var err error
	if path := component.EnvFilePath(); path != "" {
		err = envfile.WithSnapshot(path, body)
	} else {
		err = body()
	}
	return image, stage, err
}

func (w *Workflow) failed(component models.Component, stage models.StageName, err error) models.WorkflowResult {
	logging.Ensure(w.Logger).Error("release step failed",
		"component", component.Name,
		"stage", string(stage),
		"error", err,
	)
	return models.WorkflowResult{
		Component:   component,
		FailedStage: stage,
		Message:     err.Error(),
	}
}
