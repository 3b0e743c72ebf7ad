package release

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/seaward/stevedore/internal/config"
	"github.com/seaward/stevedore/internal/models"
)

type stubBuilder struct {
	builds   []models.Component
	err      error
	onBuild  func(component models.Component)
	platform string
	tag      string
}

func (b *stubBuilder) Build(ctx context.Context, component models.Component, platform, tag string) (models.LocalImage, error) {
	b.builds = append(b.builds, component)
	b.platform = platform
	b.tag = tag
	if b.onBuild != nil {
		b.onBuild(component)
	}
	if b.err != nil {
		return models.LocalImage{}, b.err
	}
	return models.LocalImage{Name: component.ImageName, Tag: tag}, nil
}

type stubRegistry struct {
	authCalls int
	authErr   error
	pushes    []models.ImageReference
	locals    []models.LocalImage
	pushErr   error
}

func (r *stubRegistry) Authenticate(ctx context.Context) error {
	r.authCalls++
	return r.authErr
}

func (r *stubRegistry) TagAndPush(ctx context.Context, local models.LocalImage, remote models.ImageReference) error {
	r.locals = append(r.locals, local)
	r.pushes = append(r.pushes, remote)
	return r.pushErr
}

type stubAppBuilder struct {
	runs []models.Component
	err  error
	run  func(component models.Component)
}

func (b *stubAppBuilder) Run(ctx context.Context, component models.Component) error {
	b.runs = append(b.runs, component)
	if b.run != nil {
		b.run(component)
	}
	return b.err
}

func testConfig() *config.Release {
	return &config.Release{
		Registry: config.Registry{URL: "123456789012.dkr.ecr.eu-west-1.amazonaws.com", Region: "eu-west-1"},
		ImageTag: "v1",
		Platform: "linux/amd64",
		Frontend: config.Component{Image: "frontend", Context: "./frontend", EnvFile: ".env"},
		Backend:  config.Component{Image: "backend", Context: "./backend"},
	}
}

func testWorkflow(cfg *config.Release, b *stubBuilder, r *stubRegistry) *Workflow {
	return &Workflow{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Builder:  b,
		Registry: r,
	}
}

func TestReleaseRunsFullSequence(t *testing.T) {
	cfg := testConfig()
	b := &stubBuilder{}
	r := &stubRegistry{}
	w := testWorkflow(cfg, b, r)

	result := w.Release(context.Background(), cfg.BackendComponent())
	if !result.Succeeded {
		t.Fatalf("expected success, got stage %q: %s", result.FailedStage, result.Message)
	}

	if b.platform != "linux/amd64" || b.tag != "v1" {
		t.Fatalf("unexpected build parameters: platform=%q tag=%q", b.platform, b.tag)
	}
	if r.authCalls != 1 {
		t.Fatalf("expected one authentication, got %d", r.authCalls)
	}
	if len(r.pushes) != 1 {
		t.Fatalf("expected one push, got %d", len(r.pushes))
	}
	want := "123456789012.dkr.ecr.eu-west-1.amazonaws.com/backend:v1"
	if r.pushes[0].String() != want {
		t.Fatalf("unexpected remote reference %q, want %q", r.pushes[0].String(), want)
	}
}

func TestReleaseShortCircuitsOnBuildFailure(t *testing.T) {
	cfg := testConfig()
	b := &stubBuilder{err: errors.New("docker exited with status 1")}
	r := &stubRegistry{}
	w := testWorkflow(cfg, b, r)

	result := w.Release(context.Background(), cfg.BackendComponent())
	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if result.FailedStage != models.StageBuild {
		t.Fatalf("expected failed stage %q, got %q", models.StageBuild, result.FailedStage)
	}
	if r.authCalls != 0 || len(r.pushes) != 0 {
		t.Fatal("registry must not be touched after a build failure")
	}
}

func TestReleaseShortCircuitsOnAuthFailure(t *testing.T) {
	cfg := testConfig()
	b := &stubBuilder{}
	r := &stubRegistry{authErr: errors.New("credential exchange failed")}
	w := testWorkflow(cfg, b, r)

	result := w.Release(context.Background(), cfg.BackendComponent())
	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if result.FailedStage != models.StageAuth {
		t.Fatalf("expected failed stage %q, got %q", models.StageAuth, result.FailedStage)
	}
	if len(r.pushes) != 0 {
		t.Fatal("push must not run after an auth failure")
	}
}

func TestReleaseRecordsPushFailure(t *testing.T) {
	cfg := testConfig()
	b := &stubBuilder{}
	r := &stubRegistry{pushErr: errors.New("registry rejected the image")}
	w := testWorkflow(cfg, b, r)

	result := w.Release(context.Background(), cfg.BackendComponent())
	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if result.FailedStage != models.StagePush {
		t.Fatalf("expected failed stage %q, got %q", models.StagePush, result.FailedStage)
	}
	if result.Message == "" {
		t.Fatal("expected failure message to be recorded")
	}
}

func TestReleaseRestoresEnvFileAroundBuild(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	cfg.Frontend.Context = dir

	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("API_URL=prod\n"), 0o644); err != nil {
		t.Fatalf("seed env file: %v", err)
	}

	b := &stubBuilder{
		onBuild: func(component models.Component) {
			if err := os.WriteFile(envPath, []byte("API_URL=build\n"), 0o644); err != nil {
				t.Fatalf("mutate env file: %v", err)
			}
		},
		err: errors.New("docker exited with status 1"),
	}
	w := testWorkflow(cfg, b, &stubRegistry{})

	result := w.Release(context.Background(), cfg.FrontendComponent())
	if result.Succeeded {
		t.Fatal("expected failure")
	}

	content, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}
	if string(content) != "API_URL=prod\n" {
		t.Fatalf("env file not restored after failed build, got %q", content)
	}
}

func TestReleaseRunsAppBuildBeforeContainerBuild(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	cfg.Frontend.Context = dir

	b := &stubBuilder{}
	app := &stubAppBuilder{
		run: func(component models.Component) {
			if len(b.builds) != 0 {
				t.Fatal("application build must run before the container build")
			}
		},
	}
	w := testWorkflow(cfg, b, &stubRegistry{})
	w.AppBuild = app

	result := w.Release(context.Background(), cfg.FrontendComponent())
	if !result.Succeeded {
		t.Fatalf("expected success, got stage %q: %s", result.FailedStage, result.Message)
	}
	if len(app.runs) != 1 {
		t.Fatalf("expected one application build, got %d", len(app.runs))
	}
}

func TestReleaseSkipsAppBuildForComponentWithoutEnvFile(t *testing.T) {
	cfg := testConfig()
	app := &stubAppBuilder{}
	w := testWorkflow(cfg, &stubBuilder{}, &stubRegistry{})
	w.AppBuild = app

	result := w.Release(context.Background(), cfg.BackendComponent())
	if !result.Succeeded {
		t.Fatalf("expected success, got stage %q: %s", result.FailedStage, result.Message)
	}
	if len(app.runs) != 0 {
		t.Fatal("application build must not run for components without an env file")
	}
}

func TestReleaseRecordsAppBuildFailure(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	cfg.Frontend.Context = dir

	b := &stubBuilder{}
	app := &stubAppBuilder{err: errors.New("bun exited with status 1")}
	w := testWorkflow(cfg, b, &stubRegistry{})
	w.AppBuild = app

	result := w.Release(context.Background(), cfg.FrontendComponent())
	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if result.FailedStage != models.StageAppBuild {
		t.Fatalf("expected failed stage %q, got %q", models.StageAppBuild, result.FailedStage)
	}
	if len(b.builds) != 0 {
		t.Fatal("container build must not run after a failed application build")
	}
}
