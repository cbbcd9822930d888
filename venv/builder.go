package venv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds timeouts for the environment lifecycle components
type Config struct {
	CreateTimeoutSec  int
	InstallTimeoutSec int
	ExecTimeoutSec    int
}

// defaultCertCandidates is the ordered list of CA bundle locations probed
// before dependency installation. This is a deployment compatibility shim for
// hosts with unusual certificate layouts, not a security decision point.
var defaultCertCandidates = []string{
	"/etc/ssl/certs/ca-certificates.crt",
	"/etc/pki/tls/certs/ca-bundle.crt",
	"/etc/ssl/ca-bundle.pem",
	"/etc/ssl/cert.pem",
}

// Builder creates virtual environments and installs dependencies into them.
// It must not be called concurrently for the same path; the Orchestrator
// serializes builds per environment name.
type Builder struct {
	logger         *zap.Logger
	createTimeout  time.Duration
	installTimeout time.Duration
	cmdRunner      CommandRunner
	fs             FileSystem
	certCandidates []string
}

// BuilderOption defines a functional option for Builder
type BuilderOption func(*Builder)

// WithCommandRunner sets the CommandRunner for Builder
func WithCommandRunner(cmdRunner CommandRunner) BuilderOption {
	return func(b *Builder) {
		b.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for Builder
func WithFileSystem(fs FileSystem) BuilderOption {
	return func(b *Builder) {
		b.fs = fs
	}
}

// WithCertCandidates overrides the CA bundle locations probed before
// dependency installation.
func WithCertCandidates(paths []string) BuilderOption {
	return func(b *Builder) {
		b.certCandidates = paths
	}
}

// NewBuilder creates a new Builder with default implementations and optional interfaces
func NewBuilder(logger *zap.Logger, config *Config, opts ...BuilderOption) *Builder {
	builder := &Builder{
		logger:         logger,
		createTimeout:  time.Duration(config.CreateTimeoutSec) * time.Second,
		installTimeout: time.Duration(config.InstallTimeoutSec) * time.Second,
		cmdRunner:      &RealCommandRunner{},
		fs:             &RealFileSystem{},
		certCandidates: defaultCertCandidates,
	}

	// Apply options
	for _, opt := range opts {
		opt(builder)
	}

	return builder
}

// Build creates a fresh virtual environment at path and installs the given
// dependency specifiers into it. Creation and installation each run under
// their own timeout. A failed creation removes the partial directory;
// installer failure text is passed through verbatim in the returned error.
func (b *Builder) Build(ctx context.Context, path string, dependencies []string) error {
	if err := b.createEnvironment(ctx, path); err != nil {
		return err
	}

	if len(dependencies) == 0 {
		return nil
	}

	return b.installDependencies(ctx, path, dependencies)
}

func (b *Builder) createEnvironment(ctx context.Context, path string) error {
	createCtx, cancel := context.WithTimeout(ctx, b.createTimeout)
	defer cancel()

	_, stderr, exitCode, err := b.cmdRunner.RunCommand(createCtx, []string{"uv", "venv", path}, nil)
	if err == nil && exitCode == 0 && createCtx.Err() == nil {
		b.logger.Debug("created virtual environment", zap.String("path", path))
		return nil
	}

	// Never leave a half-created environment behind.
	if rmErr := b.fs.RemoveAll(path); rmErr != nil {
		b.logger.Warn("failed to remove partial environment",
			zap.String("path", path),
			zap.Error(rmErr))
	}

	if createCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("failed to create virtual environment: creation timed out after %s", b.createTimeout)
	}
	if err != nil {
		return fmt.Errorf("failed to create virtual environment: %w", err)
	}
	return fmt.Errorf("failed to create virtual environment: %s", strings.TrimSpace(stderr))
}

func (b *Builder) installDependencies(ctx context.Context, path string, dependencies []string) error {
	reqPath := filepath.Join(path, "requirements.txt")
	manifest := strings.Join(dependencies, "\n") + "\n"
	if err := b.fs.WriteFile(reqPath, []byte(manifest), FilePermission); err != nil {
		return fmt.Errorf("failed to stage requirements file: %w", err)
	}
	defer func() {
		if rmErr := b.fs.RemoveAll(reqPath); rmErr != nil {
			b.logger.Debug("failed to remove requirements file", zap.Error(rmErr))
		}
	}()

	installCtx, cancel := context.WithTimeout(ctx, b.installTimeout)
	defer cancel()

	var extraEnv []string
	if cert := b.resolveCertBundle(); cert != "" {
		extraEnv = append(extraEnv, "SSL_CERT_FILE="+cert)
	}

	args := []string{"uv", "pip", "install", "-r", reqPath, "--python", path}
	_, stderr, exitCode, err := b.cmdRunner.RunCommand(installCtx, args, extraEnv)

	if installCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("failed to install dependencies: installation timed out after %s", b.installTimeout)
	}
	if err != nil {
		return fmt.Errorf("failed to install dependencies: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("failed to install dependencies: %s", strings.TrimSpace(stderr))
	}

	b.logger.Debug("installed dependencies",
		zap.String("path", path),
		zap.Int("count", len(dependencies)))
	return nil
}

// resolveCertBundle returns the first CA bundle that exists on this host, or
// empty to let the installer use its own defaults.
func (b *Builder) resolveCertBundle() string {
	for _, candidate := range b.certCandidates {
		if exists, err := b.fs.FileExists(candidate); err == nil && exists {
			return candidate
		}
	}
	return ""
}
