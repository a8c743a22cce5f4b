package registry

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/slipway-sh/slipway/pkg/types"
)

// ParseRef parses registry/repository:tag into an ArtifactRef. Parsing
// is strict: every component must be explicit, nothing is defaulted,
// and the result renders back to the exact input.
func ParseRef(s string) (types.ArtifactRef, error) {
	tag, err := name.NewTag(s, name.StrictValidation)
	if err != nil {
		return types.ArtifactRef{}, fmt.Errorf("invalid artifact reference %q: %w", s, err)
	}

	return types.ArtifactRef{
		Registry:   tag.RegistryStr(),
		Repository: tag.RepositoryStr(),
		Tag:        tag.TagStr(),
	}, nil
}
