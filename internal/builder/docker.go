// Package builder invokes the container build toolchain to produce local
// image artifacts.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/models"
	"github.com/seaward/stevedore/internal/toolchain"
)

// BuildError reports a failed container image build. Fatal for the
// component's workflow; there is no automatic retry.
type BuildError struct {
	Component string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Component, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// DockerBuilder builds component images with the docker CLI.
type DockerBuilder struct {
	Logger *slog.Logger
	Runner toolchain.Runner
}

// Build produces a local image tagged imageName:tag from the component's
// build context for the requested target platform.
func (b *DockerBuilder) Build(ctx context.Context, component models.Component, platform, tag string) (models.LocalImage, error) {
	image := models.LocalImage{Name: component.ImageName, Tag: tag}
	logger := logging.Ensure(b.Logger).With("component", component.Name, "image", image.Ref())

	logger.Info("building image", "platform", platform, "context", component.BuildContext)

	err := b.Runner.Run(ctx, toolchain.ToolDocker, "build",
		"--platform", platform,
		"-t", image.Ref(),
		component.BuildContext,
	)
	if err != nil {
		return models.LocalImage{}, &BuildError{Component: component.Name, Err: err}
	}

	logger.Info("image built")
	return image, nil
}

// AppBuilder runs the optional application build ahead of the container
// build: writes the transient environment file, installs dependencies,
// and runs the bundler in the component's build context. Callers wrap
// this in an environment snapshot scope so the transient file never
// outlives the build.
type AppBuilder struct {
	Logger     *slog.Logger
	Runner     toolchain.Runner
	Install    []string
	Build      []string
	EnvContent string
}

// Run executes the application build for the component.
func (b *AppBuilder) Run(ctx context.Context, component models.Component) error {
	logger := logging.Ensure(b.Logger).With("component", component.Name)

	if b.EnvContent != "" {
		path := component.EnvFilePath()
		if path == "" {
			return fmt.Errorf("component %s declares no environment file to write", component.Name)
		}
		if err := os.WriteFile(path, []byte(b.EnvContent), 0o644); err != nil {
			return fmt.Errorf("write build environment file: %w", err)
		}
		logger.Debug("wrote transient environment file", "path", path)
	}

	for _, argv := range [][]string{b.Install, b.Build} {
		if len(argv) == 0 {
			continue
		}
		logger.Info("running application build step", "command", strings.Join(argv, " "))
		if err := b.Runner.RunIn(ctx, component.BuildContext, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("application build: %w", err)
		}
	}

	return nil
}
