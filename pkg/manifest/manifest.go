// Package manifest loads descriptor documents from YAML files.
//
// Every document carries the same envelope:
//
//	apiVersion: slipway.dev/v1
//	kind: ClusterTopology | Workload | Image
//	metadata:
//	  name: payments-api
//	  namespace: payments
//	spec: <kind-specific fields>
//
// Decoding is strict: unknown fields anywhere in the document are
// errors, so typos surface at load time instead of becoming silently
// ignored configuration.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// APIVersion is the only schema version this build understands.
	APIVersion = "slipway.dev/v1"

	KindClusterTopology = "ClusterTopology"
	KindWorkload        = "Workload"
	KindImage           = "Image"

	// DefaultNamespace is assumed when workload metadata omits one.
	DefaultNamespace = "default"
)

// Metadata names a descriptor and, for workloads, places it in a
// namespace.
type Metadata struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace,omitempty"`
	Labels    map[string]string `yaml:"labels,omitempty"`
}

// document is the YAML envelope. The spec node is decoded again per
// kind so unknown-field checking reaches into it.
type document struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// Bundle groups every descriptor decoded from a set of manifests.
type Bundle struct {
	Topologies []*types.ClusterTopology
	Workloads  []*types.WorkloadDescriptor
	Images     []*types.ImageDescriptor
}

// Empty reports whether the bundle holds no descriptors.
func (b *Bundle) Empty() bool {
	return len(b.Topologies) == 0 && len(b.Workloads) == 0 && len(b.Images) == 0
}

// Loader reads manifests from a filesystem. Passing a nil Fs selects
// the host filesystem; tests hand in an in-memory one.
type Loader struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewLoader builds a Loader over the given filesystem.
func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, log: log.WithComponent("manifest")}
}

// Load decodes every manifest at the given paths into one bundle.
// Directories are walked for .yaml and .yml files in lexical order.
func (l *Loader) Load(paths ...string) (*Bundle, error) {
	files, err := l.expand(paths)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	for _, path := range files {
		if err := l.loadFile(path, bundle); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

func (l *Loader) expand(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := l.fs.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("manifest path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		walkErr := afero.Walk(l.fs, path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(p)) {
			case ".yaml", ".yml":
				found = append(found, p)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("manifest path %s: %w", path, walkErr)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func (l *Loader) loadFile(path string, bundle *Bundle) error {
	f, err := l.fs.Open(path)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	for docIndex := 1; ; docIndex++ {
		var doc document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("manifest %s: document %d: %w", path, docIndex, err)
		}
		if doc.Kind == "" && doc.APIVersion == "" {
			// Blank document separator.
			continue
		}
		if err := l.addDocument(&doc, bundle); err != nil {
			return fmt.Errorf("manifest %s: document %d: %w", path, docIndex, err)
		}
		l.log.Debug().
			Str("path", path).
			Str("kind", doc.Kind).
			Str("name", doc.Metadata.Name).
			Msg("descriptor loaded")
	}
	return nil
}

func (l *Loader) addDocument(doc *document, bundle *Bundle) error {
	if doc.APIVersion != APIVersion {
		return fmt.Errorf("unsupported apiVersion %q (want %s)", doc.APIVersion, APIVersion)
	}
	if doc.Metadata.Name == "" {
		return fmt.Errorf("kind %s: metadata.name is required", doc.Kind)
	}
	if doc.Spec.IsZero() {
		return fmt.Errorf("kind %s: spec is required", doc.Kind)
	}

	switch doc.Kind {
	case KindClusterTopology:
		ct := &types.ClusterTopology{}
		if err := decodeSpec(&doc.Spec, ct); err != nil {
			return err
		}
		ct.Name = doc.Metadata.Name
		bundle.Topologies = append(bundle.Topologies, ct)

	case KindWorkload:
		wd := &types.WorkloadDescriptor{}
		if err := decodeSpec(&doc.Spec, wd); err != nil {
			return err
		}
		wd.Name = doc.Metadata.Name
		wd.Namespace = doc.Metadata.Namespace
		if wd.Namespace == "" {
			wd.Namespace = DefaultNamespace
		}
		bundle.Workloads = append(bundle.Workloads, wd)

	case KindImage:
		im := &types.ImageDescriptor{}
		if err := decodeSpec(&doc.Spec, im); err != nil {
			return err
		}
		im.Name = doc.Metadata.Name
		bundle.Images = append(bundle.Images, im)

	default:
		return fmt.Errorf("unknown kind %q", doc.Kind)
	}
	return nil
}

// decodeSpec re-encodes the spec node and decodes it strictly, since
// yaml.Node.Decode alone does not honor KnownFields.
func decodeSpec(node *yaml.Node, out interface{}) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("spec: %w", err)
	}
	return nil
}
