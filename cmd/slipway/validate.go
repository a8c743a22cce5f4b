package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/manifest"
	"github.com/slipway-sh/slipway/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate descriptor manifests",
	Long: `Validate descriptor manifests without applying them.

Every descriptor is checked against the full invariant set: field
rules, the scaling envelope, subnet placement, supported control
plane versions, resource requests against limits and exposure
coupling. Violations are reported per descriptor in field order.

Examples:
  # Validate a single manifest
  slipway validate -f workload.yaml

  # Validate a directory of manifests
  slipway validate -f manifests/`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceP("file", "f", nil, "Manifest file or directory (repeatable, required)")
	_ = validateCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")

	bundle, err := manifest.NewLoader(nil).Load(files...)
	if err != nil {
		return err
	}
	if bundle.Empty() {
		return fmt.Errorf("no descriptors found in %v", files)
	}

	v := validate.New()
	invalid := 0

	for _, ct := range bundle.Topologies {
		invalid += report("ClusterTopology", ct.Name, v.ClusterTopology(ct))
	}
	for _, wd := range bundle.Workloads {
		invalid += report("Workload", wd.Key(), v.Workload(wd))
	}
	for _, im := range bundle.Images {
		invalid += report("Image", im.Name, v.Image(im))
	}
	// Workload manifests are often validated without their topology on
	// hand, so only cross-check when the bundle brings both kinds.
	if len(bundle.Topologies) > 0 && len(bundle.Workloads) > 0 {
		invalid += report("CrossReferences", "", v.CrossReferences(bundle.Topologies, bundle.Workloads))
	}

	if invalid > 0 {
		return fmt.Errorf("%d check(s) failed", invalid)
	}
	return nil
}

// report prints one check's outcome and returns 1 when it failed.
func report(kind, name string, result validate.Result) int {
	label := kind
	if name != "" {
		label = fmt.Sprintf("%s %s", kind, name)
	}
	if result.Valid() {
		color.Green("✓ %s", label)
		return 0
	}
	color.Red("✗ %s", label)
	for _, violation := range result.Violations {
		fmt.Printf("    %s\n", violation.String())
	}
	return 1
}
