// Package registry authenticates to the remote image registry and pushes
// locally built artifacts to fully-qualified references.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seaward/stevedore/internal/logging"
	"github.com/seaward/stevedore/internal/models"
	"github.com/seaward/stevedore/internal/toolchain"
)

// AuthError reports a failed credential exchange or registry login.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("registry authentication: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// PushError reports a failed tag or push of a local image artifact.
type PushError struct {
	Reference string
	Err       error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s: %v", e.Reference, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// Client logs in to an ECR-style registry and pushes images. The first
// successful login is cached for the rest of the run; re-authenticating
// is never an error.
type Client struct {
	Logger *slog.Logger
	Runner toolchain.Runner
	URL    string
	Region string

	authenticated bool
}

// Authenticate exchanges a region-scoped credential for a registry login
// session. Idempotent within a run.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.authenticated {
		return nil
	}
	logger := logging.Ensure(c.Logger).With("registry", c.URL, "region", c.Region)
	logger.Info("logging in to registry")

	token, err := c.Runner.Output(ctx, toolchain.ToolAWS, "ecr", "get-login-password", "--region", c.Region)
	if err != nil {
		return &AuthError{Err: err}
	}

	err = c.Runner.RunWithInput(ctx, []byte(strings.TrimSpace(token)), toolchain.ToolDocker,
		"login", "--username", "AWS", "--password-stdin", c.URL)
	if err != nil {
		return &AuthError{Err: err}
	}

	c.authenticated = true
	logger.Info("registry login succeeded")
	return nil
}

// TagAndPush tags the local image with the fully-qualified remote
// reference, then pushes it.
func (c *Client) TagAndPush(ctx context.Context, local models.LocalImage, remote models.ImageReference) error {
	if err := remote.Validate(); err != nil {
		return &PushError{Reference: remote.String(), Err: err}
	}
	logger := logging.Ensure(c.Logger).With("local", local.Ref(), "remote", remote.String())

	logger.Info("tagging image")
	if err := c.Runner.Run(ctx, toolchain.ToolDocker, "tag", local.Ref(), remote.String()); err != nil {
		return &PushError{Reference: remote.String(), Err: err}
	}

	logger.Info("pushing image")
	if err := c.Runner.Run(ctx, toolchain.ToolDocker, "push", remote.String()); err != nil {
		return &PushError{Reference: remote.String(), Err: err}
	}

	logger.Info("push completed")
	return nil
}
