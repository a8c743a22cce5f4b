/*
Package registry handles artifact references and the image stages of
the pipeline: building the runtime image from a fetched source tree and
publishing it to a container registry.

# Architecture

	┌──────────────────── IMAGE STAGES ─────────────────────┐
	│                                                       │
	│  workspace ──► CraneBuilder ──► Image ──► Publisher   │
	│                    │                          │       │
	│            pull runtime base            push by tag   │
	│            append asset layer                 │       │
	│            set entrypoint/port          ArtifactRef   │
	│                                                       │
	│  RemoteResolver answers "is this tag pullable"; the   │
	│  publisher resolves after pushing so a returned ref   │
	│  is known pullable                                    │
	└───────────────────────────────────────────────────────┘

# Usage

	ref, err := registry.ParseRef("ghcr.io/team/app:v1")

	builder := registry.NewCraneBuilder(imageDesc)
	img, err := builder.Build(ctx, workspace)

	publisher := registry.NewRemotePublisher()
	published, err := publisher.Publish(ctx, img, workload.Image.WithTag(tag))

References parse strictly: registry, repository, and tag must all be
explicit, and parse/render round-trips exactly. The builder honors
.dockerignore in the build directory and stamps the entrypoint, the
exposed port, and provenance labels onto the image config.

# Integration Points

This package integrates with:

  - pkg/pipeline: build-image and publish-image stage engines
  - pkg/validate: reference checks reuse the same strict parser
  - pkg/source: builds from a fetched Workspace
*/
package registry
