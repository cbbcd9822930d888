package venv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Decision is the outcome of consulting the reuse policy for a named
// environment.
type Decision int

const (
	// DecisionRebuild means any cached environment must be discarded and
	// built from scratch.
	DecisionRebuild Decision = iota
	// DecisionReuse means the cached environment satisfies the requested
	// dependency set and may be used as-is.
	DecisionReuse
)

func (d Decision) String() string {
	if d == DecisionReuse {
		return "reuse"
	}
	return "rebuild"
}

// Metadata is the persisted record describing a named environment. It is
// written only after a successful build; a missing or unreadable record means
// the environment is treated as absent.
type Metadata struct {
	Dependencies []string  `yaml:"dependencies"`
	CreatedAt    time.Time `yaml:"created_at"`
}

// Store is the durable registry of named environments. Environments live in
// <root>/envs/<name> with a sibling metadata record <root>/meta/<name>.yaml;
// temporary environments are rooted under <root>/tmp.
type Store struct {
	root   string
	err    error
	logger *zap.Logger
	fs     FileSystem
}

// StoreOption defines a functional option for Store
type StoreOption func(*Store)

// WithStoreFileSystem sets the FileSystem for Store
func WithStoreFileSystem(fs FileSystem) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// NewStore creates a Store rooted at root, creating the on-disk layout if it
// does not exist. Initialization failure does not return an error: the store
// degrades to unavailable, which only affects named environments.
func NewStore(root string, logger *zap.Logger, opts ...StoreOption) *Store {
	s := &Store{
		root:   root,
		logger: logger,
		fs:     &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{s.envsDir(), s.metaDir(), filepath.Join(root, "tmp")} {
		if err := s.fs.MkdirAll(dir, DirPermission); err != nil {
			s.err = fmt.Errorf("cannot initialize environment store at %s: %w", root, err)
			logger.Warn("environment store unavailable, named environments disabled",
				zap.String("root", root),
				zap.Error(err))
			break
		}
	}

	return s
}

// Available reports whether the on-disk store could be initialized. When
// false, named environment requests fail but temporary environments still
// work.
func (s *Store) Available() bool {
	return s.err == nil
}

// Err returns the initialization error, or nil when the store is available.
func (s *Store) Err() error {
	return s.err
}

// EnvDir returns the directory for a named environment.
func (s *Store) EnvDir(name string) string {
	return filepath.Join(s.envsDir(), name)
}

// TempRoot returns the parent directory for temporary environment roots.
func (s *Store) TempRoot() string {
	if s.err != nil {
		return os.TempDir()
	}
	return filepath.Join(s.root, "tmp")
}

func (s *Store) envsDir() string {
	return filepath.Join(s.root, "envs")
}

func (s *Store) metaDir() string {
	return filepath.Join(s.root, "meta")
}

func (s *Store) metadataPath(name string) string {
	return filepath.Join(s.metaDir(), name+".yaml")
}

// Resolve decides whether the cached environment for name can be reused for
// the requested dependency set. Reuse requires a readable metadata record, an
// existing environment directory, and set equality of the dependency
// specifiers; everything else forces a rebuild. Missing or corrupt metadata
// never produces an error, only a rebuild.
func (s *Store) Resolve(name string, dependencies []string) Decision {
	meta, err := s.readMetadata(name)
	if err != nil {
		s.logger.Debug("no usable metadata for environment",
			zap.String("name", name),
			zap.Error(err))
		return DecisionRebuild
	}

	exists, err := s.fs.FileExists(s.EnvDir(name))
	if err != nil || !exists {
		return DecisionRebuild
	}

	if !sameDependencySet(meta.Dependencies, dependencies) {
		return DecisionRebuild
	}

	return DecisionReuse
}

// SaveMetadata persists the metadata record for a freshly built environment.
// Callers must invoke it only after the build fully succeeded; it is the last
// step of a successful build.
func (s *Store) SaveMetadata(name string, dependencies []string) error {
	meta := Metadata{
		Dependencies: dependencies,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to encode environment metadata: %w", err)
	}

	if err := s.fs.WriteFile(s.metadataPath(name), data, FilePermission); err != nil {
		return fmt.Errorf("failed to write environment metadata: %w", err)
	}

	return nil
}

// Remove deletes a named environment's metadata record and directory,
// metadata first so a partial removal is read as "absent" rather than as a
// record pointing at a missing directory. Failures are logged and do not
// abort the caller's rebuild.
func (s *Store) Remove(name string) {
	if err := s.fs.RemoveAll(s.metadataPath(name)); err != nil {
		s.logger.Warn("failed to remove environment metadata",
			zap.String("name", name),
			zap.Error(err))
	}
	if err := s.fs.RemoveAll(s.EnvDir(name)); err != nil {
		s.logger.Warn("failed to remove environment directory",
			zap.String("name", name),
			zap.Error(err))
	}
}

func (s *Store) readMetadata(name string) (*Metadata, error) {
	data, err := s.fs.ReadFile(s.metadataPath(name))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt metadata record: %w", err)
	}

	return &meta, nil
}

// sameDependencySet compares two specifier lists as unordered sets. The
// comparison is purely textual: no version resolution, no normalization of
// equivalent specifiers.
func sameDependencySet(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, dep := range a {
		setA[dep] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, dep := range b {
		setB[dep] = struct{}{}
	}

	if len(setA) != len(setB) {
		return false
	}
	for dep := range setA {
		if _, ok := setB[dep]; !ok {
			return false
		}
	}
	return true
}
