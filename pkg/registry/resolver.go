package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Resolver answers whether an artifact reference is pullable.
type Resolver interface {
	Resolve(ctx context.Context, ref types.ArtifactRef) (string, error)
}

// RemoteResolver resolves references by asking the registry directly.
type RemoteResolver struct {
	opts []remote.Option
}

// NewRemoteResolver creates a resolver. Options configure transport
// and authentication for the registry round-trip.
func NewRemoteResolver(opts ...remote.Option) *RemoteResolver {
	return &RemoteResolver{opts: opts}
}

// Resolve HEADs the manifest for the reference and returns its digest.
// An unresolvable tag is an error.
func (r *RemoteResolver) Resolve(ctx context.Context, ref types.ArtifactRef) (string, error) {
	tag, err := name.NewTag(ref.String(), name.StrictValidation)
	if err != nil {
		return "", fmt.Errorf("invalid artifact reference %q: %w", ref, err)
	}

	desc, err := remote.Head(tag, append(r.opts, remote.WithContext(ctx))...)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	return desc.Digest.String(), nil
}
