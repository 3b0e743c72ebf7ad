package models

import (
	"fmt"
	"path/filepath"

	"github.com/distribution/reference"
)

// Component is a single independently released unit.
type Component struct {
	Name         string
	ImageName    string
	BuildContext string
	// EnvFile is the component's local configuration file, relative to the
	// build context. Empty when the component declares none.
	EnvFile string
}

// HasEnvFile reports whether the component declares a local configuration
// file that must be snapshotted around its build.
func (c Component) HasEnvFile() bool {
	return c.EnvFile != ""
}

// EnvFilePath returns the absolute-or-relative path of the component's
// configuration file within its build context, or "" when it has none.
func (c Component) EnvFilePath() string {
	if c.EnvFile == "" {
		return ""
	}
	return filepath.Join(c.BuildContext, c.EnvFile)
}

// LocalImage identifies a locally built and tagged image artifact.
type LocalImage struct {
	Name string
	Tag  string
}

// Ref returns the local image reference, e.g. "frontend:v1".
func (i LocalImage) Ref() string {
	return i.Name + ":" + i.Tag
}

// ImageReference identifies an image under a remote registry. It is a pure
// function of configuration and is never mutated after construction.
type ImageReference struct {
	Registry   string
	Repository string
	Tag        string
}

// String renders the fully-qualified reference, "registry/repository:tag".
func (r ImageReference) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// Validate checks that the rendered reference is a well-formed
// fully-qualified image reference.
func (r ImageReference) Validate() error {
	if _, err := reference.ParseNamed(r.String()); err != nil {
		return fmt.Errorf("image reference %q: %w", r.String(), err)
	}
	return nil
}

// StageName identifies a step within a component release workflow.
type StageName string

const (
	StagePrerequisites StageName = "prerequisites"
	StageAppBuild      StageName = "app-build"
	StageBuild         StageName = "build"
	StageAuth          StageName = "auth"
	StagePush          StageName = "push"
)

// WorkflowResult records the outcome of one component's release attempt.
// FailedStage and Message are only set when the workflow did not succeed.
type WorkflowResult struct {
	Component   Component
	Succeeded   bool
	FailedStage StageName
	Message     string
}
