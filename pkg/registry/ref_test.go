package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

// TestParseRef tests strict reference parsing
func TestParseRef(t *testing.T) {
	ref, err := ParseRef("registry.example.com/team/app:v1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "registry.example.com", ref.Registry)
	assert.Equal(t, "team/app", ref.Repository)
	assert.Equal(t, "v1.2.3", ref.Tag)
}

// TestParseRefRoundTrip tests that parse and render are exact inverses
func TestParseRefRoundTrip(t *testing.T) {
	inputs := []string{
		"registry.example.com/team/app:v1.2.3",
		"localhost:5000/app:latest",
		"ghcr.io/slipway-sh/slipway:0.1.0",
	}

	for _, input := range inputs {
		ref, err := ParseRef(input)
		require.NoError(t, err, input)
		assert.Equal(t, input, ref.String(), "round-trip must preserve the input")

		again, err := ParseRef(ref.String())
		require.NoError(t, err, input)
		assert.Equal(t, ref, again)
	}
}

// TestParseRefRejectsIncomplete tests that nothing is defaulted
func TestParseRefRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing tag", "registry.example.com/team/app"},
		{"missing registry", "app:v1"},
		{"bare name", "app"},
		{"empty", ""},
		{"uppercase repository", "registry.example.com/Team/App:v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRef(tt.input)
			assert.Error(t, err)
		})
	}
}

// TestArtifactRefString tests reference rendering
func TestArtifactRefString(t *testing.T) {
	ref := types.ArtifactRef{
		Registry:   "registry.example.com",
		Repository: "team/app",
		Tag:        "abc123def456",
	}

	assert.Equal(t, "registry.example.com/team/app:abc123def456", ref.String())
}
