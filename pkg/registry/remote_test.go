package registry

import (
	"context"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

// TestRemotePublisherPublish tests pushing and re-pulling an image
func TestRemotePublisherPublish(t *testing.T) {
	host := newTestRegistry(t)

	img, err := random.Image(1024, 1)
	require.NoError(t, err)
	wantDigest, err := img.Digest()
	require.NoError(t, err)

	ref := types.ArtifactRef{Registry: host, Repository: "payments/checkout", Tag: "abc123def456"}

	publisher := NewRemotePublisher()
	got, err := publisher.Publish(context.Background(), img, ref)
	require.NoError(t, err)
	assert.Equal(t, ref, got, "publish returns the exact reference")

	tag, err := name.NewTag(ref.String())
	require.NoError(t, err)
	pulled, err := remote.Image(tag)
	require.NoError(t, err)

	gotDigest, err := pulled.Digest()
	require.NoError(t, err)
	assert.Equal(t, wantDigest, gotDigest)
}

// TestRemotePublisherInvalidRef tests rejection of incomplete references
func TestRemotePublisherInvalidRef(t *testing.T) {
	img, err := random.Image(1024, 1)
	require.NoError(t, err)

	publisher := NewRemotePublisher()
	_, err = publisher.Publish(context.Background(), img, types.ArtifactRef{Repository: "app"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact reference")
}

// TestRemoteResolverResolve tests digest lookup for a pushed tag
func TestRemoteResolverResolve(t *testing.T) {
	host := newTestRegistry(t)

	ref := types.ArtifactRef{Registry: host, Repository: "payments/checkout", Tag: "v1"}
	img := pushRandomImage(t, ref.String())

	wantDigest, err := img.Digest()
	require.NoError(t, err)

	resolver := NewRemoteResolver()
	digest, err := resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, wantDigest.String(), digest)
}

// TestRemoteResolverUnknownTag tests that an absent tag is an error
func TestRemoteResolverUnknownTag(t *testing.T) {
	host := newTestRegistry(t)

	resolver := NewRemoteResolver()
	_, err := resolver.Resolve(context.Background(), types.ArtifactRef{
		Registry:   host,
		Repository: "payments/checkout",
		Tag:        "absent",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve")
}
