package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Publisher pushes a built image to its registry.
type Publisher interface {
	Publish(ctx context.Context, img Image, ref types.ArtifactRef) (types.ArtifactRef, error)
}

// RemotePublisher pushes images over the registry API.
type RemotePublisher struct {
	opts     []remote.Option
	resolver Resolver
	logger   zerolog.Logger
}

// NewRemotePublisher creates a publisher. Options configure transport
// and authentication for the push.
func NewRemotePublisher(opts ...remote.Option) *RemotePublisher {
	return &RemotePublisher{
		opts:     opts,
		resolver: NewRemoteResolver(opts...),
		logger:   log.WithComponent("publisher"),
	}
}

// Publish pushes the image under the given reference and returns the
// reference the artifact is now pullable by. The push only counts once
// the registry resolves the tag back; the apply stage depends on the
// reference being pullable, not just accepted.
func (p *RemotePublisher) Publish(ctx context.Context, img Image, ref types.ArtifactRef) (types.ArtifactRef, error) {
	tag, err := name.NewTag(ref.String(), name.StrictValidation)
	if err != nil {
		return types.ArtifactRef{}, fmt.Errorf("invalid artifact reference %q: %w", ref, err)
	}

	p.logger.Info().Str("ref", ref.String()).Msg("Pushing image")

	if err := remote.Write(tag, img, append(p.opts, remote.WithContext(ctx))...); err != nil {
		return types.ArtifactRef{}, fmt.Errorf("failed to push %s: %w", ref, err)
	}

	digest, err := p.resolver.Resolve(ctx, ref)
	if err != nil {
		return types.ArtifactRef{}, fmt.Errorf("pushed %s but the registry does not resolve it: %w", ref, err)
	}

	p.logger.Info().Str("ref", ref.String()).Str("digest", digest).Msg("Image pushed")

	return ref, nil
}
