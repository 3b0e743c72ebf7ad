// Package config loads the immutable release configuration. Values are
// layered from built-in defaults, an optional YAML file, and environment
// variables, in that order of increasing priority. The resulting Release
// value is constructed once at process start and read-only thereafter.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/seaward/stevedore/internal/models"
)

const (
	// EnvPrefix scopes environment overrides. Double underscore nests keys:
	// STEVEDORE__REGISTRY__URL -> registry.url.
	EnvPrefix = "STEVEDORE"

	// DefaultConfigFile is loaded from the working directory when present
	// and no explicit path is given.
	DefaultConfigFile = "stevedore.yaml"
)

// Registry identifies the remote image registry and the region used for
// the credential exchange.
type Registry struct {
	URL    string `koanf:"url" validate:"required"`
	Region string `koanf:"region" validate:"required"`
}

// Component describes one release unit.
type Component struct {
	Image   string `koanf:"image" validate:"required"`
	Context string `koanf:"context" validate:"required"`
	EnvFile string `koanf:"env_file"`
}

// AppBuild controls the optional application build that runs ahead of the
// container build. Disabled by default: the container build is assumed to
// compile the application internally.
type AppBuild struct {
	Enabled    bool     `koanf:"enabled"`
	Install    []string `koanf:"install"`
	Build      []string `koanf:"build"`
	EnvContent string   `koanf:"env_content"`
}

// Release is the process-wide release configuration.
type Release struct {
	Registry Registry  `koanf:"registry"`
	ImageTag string    `koanf:"image_tag" validate:"required"`
	Platform string    `koanf:"platform" validate:"required"`
	Frontend Component `koanf:"frontend"`
	Backend  Component `koanf:"backend"`
	AppBuild AppBuild  `koanf:"app_build"`
}

func defaults() map[string]any {
	return map[string]any{
		"registry.region":   "eu-west-1",
		"image_tag":         "latest",
		"platform":          "linux/amd64",
		"frontend.image":    "frontend",
		"frontend.context":  "./frontend",
		"frontend.env_file": ".env",
		"backend.image":     "backend",
		"backend.context":   "./backend",
		"app_build.install": []string{"bun", "install"},
		"app_build.build":   []string{"bun", "run", "build"},
	}
}

// Load builds the release configuration from defaults, the YAML file at
// path (skipped when path is empty), and STEVEDORE__* environment
// variables, then validates it.
func Load(path string) (*Release, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	prefix := EnvPrefix + "__"
	envProvider := env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Release
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and cross-field constraints.
func (c *Release) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			missing := make([]string, 0, len(fields))
			for _, field := range fields {
				missing = append(missing, strings.ToLower(strings.TrimPrefix(field.Namespace(), "Release.")))
			}
			return fmt.Errorf("invalid configuration: %s (%s)", strings.Join(missing, ", "), fields[0].Tag())
		}
		return fmt.Errorf("validate configuration: %w", err)
	}

	if c.Frontend.Image == c.Backend.Image {
		return fmt.Errorf("frontend and backend must use distinct image names, both are %q", c.Frontend.Image)
	}
	return nil
}

// FrontendComponent returns the frontend release unit.
func (c *Release) FrontendComponent() models.Component {
	return models.Component{
		Name:         "frontend",
		ImageName:    c.Frontend.Image,
		BuildContext: c.Frontend.Context,
		EnvFile:      c.Frontend.EnvFile,
	}
}

// BackendComponent returns the backend release unit.
func (c *Release) BackendComponent() models.Component {
	return models.Component{
		Name:         "backend",
		ImageName:    c.Backend.Image,
		BuildContext: c.Backend.Context,
		EnvFile:      c.Backend.EnvFile,
	}
}
