package registry

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/compression"
	"github.com/google/go-containerregistry/pkg/crane"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/source"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Image is a container image assembled by a Builder and pushed by a
// Publisher.
type Image = v1.Image

// Labels stamped onto built images.
const (
	LabelBaseImage = "dev.slipway.base-image"
	LabelCommit    = "dev.slipway.commit"
)

// Entries excluded from the layer even without a .dockerignore.
var defaultIgnorePatterns = []string{".git"}

// Builder assembles a runtime image from a fetched source workspace.
type Builder interface {
	Build(ctx context.Context, ws source.Workspace) (Image, error)
}

// CraneBuilder assembles the runtime image for one image descriptor by
// layering the built asset directory onto the runtime base.
type CraneBuilder struct {
	desc   *types.ImageDescriptor
	opts   []crane.Option
	logger zerolog.Logger
}

// NewCraneBuilder creates a builder for the descriptor. Options
// configure registry access for the base image pull.
func NewCraneBuilder(desc *types.ImageDescriptor, opts ...crane.Option) *CraneBuilder {
	return &CraneBuilder{
		desc:   desc,
		opts:   opts,
		logger: log.WithComponent("builder"),
	}
}

// Build pulls the runtime base, appends the asset directory as a gzip
// layer honoring .dockerignore, and sets the container contract:
// entrypoint, exposed port, and provenance labels.
func (b *CraneBuilder) Build(ctx context.Context, ws source.Workspace) (Image, error) {
	buildDir := filepath.Join(ws.Dir, b.desc.BuildDir)
	if _, err := os.Stat(buildDir); err != nil {
		return nil, fmt.Errorf("build dir %s: %w", buildDir, err)
	}

	b.logger.Info().
		Str("image", b.desc.Name).
		Str("runtimeImage", b.desc.RuntimeImage).
		Str("buildDir", buildDir).
		Msg("Building image")

	matcher, err := readIgnorePatterns(buildDir, defaultIgnorePatterns)
	if err != nil {
		return nil, err
	}

	tarPath, err := createFilteredTar(buildDir, matcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create layer tarball: %w", err)
	}
	defer os.Remove(tarPath)

	layer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return os.Open(tarPath)
	}, tarball.WithCompression(compression.GZip))
	if err != nil {
		return nil, fmt.Errorf("failed to create layer from tarball: %w", err)
	}

	base, err := crane.Pull(b.desc.RuntimeImage, append(b.opts, crane.WithContext(ctx))...)
	if err != nil {
		return nil, fmt.Errorf("failed to pull runtime image %q: %w", b.desc.RuntimeImage, err)
	}

	img, err := mutate.AppendLayers(base, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to append layer: %w", err)
	}

	img, err = b.configure(img, ws.CommitID)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// configure stamps the container contract onto the image config.
func (b *CraneBuilder) configure(img Image, commit string) (Image, error) {
	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to read image config: %w", err)
	}

	cfg := cf.DeepCopy()
	cfg.Config.Entrypoint = b.desc.Entrypoint
	cfg.Config.Cmd = nil

	if cfg.Config.ExposedPorts == nil {
		cfg.Config.ExposedPorts = make(map[string]struct{})
	}
	cfg.Config.ExposedPorts[fmt.Sprintf("%d/tcp", b.desc.ExposedPort)] = struct{}{}

	if cfg.Config.Labels == nil {
		cfg.Config.Labels = make(map[string]string)
	}
	cfg.Config.Labels[LabelBaseImage] = b.desc.BaseImage
	cfg.Config.Labels[LabelCommit] = commit

	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set image config: %w", err)
	}

	return img, nil
}

// readIgnorePatterns merges the defaults with .dockerignore in dir.
func readIgnorePatterns(dir string, defaults []string) (*patternmatcher.PatternMatcher, error) {
	patterns := make([]string, len(defaults))
	copy(patterns, defaults)

	ignorePath := filepath.Join(dir, ".dockerignore")
	if file, err := os.Open(ignorePath); err == nil {
		defer file.Close()

		filePatterns, err := ignorefile.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ignorePath, err)
		}
		patterns = append(patterns, filePatterns...)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open %s: %w", ignorePath, err)
	}

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to build ignore matcher: %w", err)
	}

	return matcher, nil
}

// createFilteredTar writes dir into a gzip tarball at a temp path,
// skipping entries the matcher ignores.
func createFilteredTar(dir string, matcher *patternmatcher.PatternMatcher) (string, error) {
	tmpFile, err := os.CreateTemp("", "slipway-layer-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("failed to create temp tarball: %w", err)
	}
	defer tmpFile.Close()

	gzipWriter := gzip.NewWriter(tmpFile)
	tarWriter := tar.NewWriter(gzipWriter)

	walkErr := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		return writeTarEntry(tarWriter, dir, matcher, path, info, err)
	})

	if closeErr := tarWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = fmt.Errorf("failed to close tar writer: %w", closeErr)
	}
	if closeErr := gzipWriter.Close(); closeErr != nil && walkErr == nil {
		walkErr = fmt.Errorf("failed to close gzip writer: %w", closeErr)
	}

	if walkErr != nil {
		os.Remove(tmpFile.Name())
		return "", walkErr
	}

	return tmpFile.Name(), nil
}

func writeTarEntry(tarWriter *tar.Writer, dir string, matcher *patternmatcher.PatternMatcher, path string, info fs.FileInfo, walkErr error) error {
	if walkErr != nil {
		return walkErr
	}

	relPath, err := filepath.Rel(dir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path for %q: %w", path, err)
	}
	if relPath == "." {
		return nil
	}

	// Directories need a trailing slash for directory patterns to match
	relPathSlash := filepath.ToSlash(relPath)
	if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
		relPathSlash += "/"
	}

	ignored, err := matcher.MatchesOrParentMatches(relPathSlash)
	if err != nil {
		return fmt.Errorf("failed to match ignore patterns for %q: %w", path, err)
	}
	if ignored {
		if info.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	header, err := tar.FileInfoHeader(info, relPath)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %q: %w", path, err)
	}
	header.Name = filepath.ToSlash(relPath)

	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %q: %w", path, err)
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %q: %w", path, err)
		}
		defer file.Close()

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to write %q into layer: %w", path, err)
		}
	}

	return nil
}
