package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/manifest"
	"github.com/slipway-sh/slipway/pkg/provision"
	"github.com/slipway-sh/slipway/pkg/validate"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render topology provisioning variables",
	Long: `Render ClusterTopology descriptors into Terraform variable
definitions.

Rendering is deterministic: an unchanged topology produces byte
identical output. Variables print to stdout by default; --out writes
one <name>.auto.tfvars file per topology instead.

Examples:
  # Print provisioning variables
  slipway render -f topology.yaml

  # Write one tfvars file per topology
  slipway render -f manifests/ --out ./tfvars`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringSliceP("file", "f", nil, "Manifest file or directory (repeatable, required)")
	renderCmd.Flags().StringP("out", "o", "", "Directory to write tfvars files into (default: stdout)")
	_ = renderCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	outDir, _ := cmd.Flags().GetString("out")

	bundle, err := manifest.NewLoader(nil).Load(files...)
	if err != nil {
		return err
	}
	if len(bundle.Topologies) == 0 {
		return fmt.Errorf("no ClusterTopology descriptors found in %v", files)
	}

	v := validate.New()
	for _, ct := range bundle.Topologies {
		if err := v.ClusterTopology(ct).Err(); err != nil {
			return err
		}
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %v", outDir, err)
		}
	}

	for _, ct := range bundle.Topologies {
		vars := provision.RenderVars(ct)
		if outDir == "" {
			fmt.Printf("# %s\n%s", ct.Name, vars)
			continue
		}
		path := filepath.Join(outDir, ct.Name+".auto.tfvars")
		if err := os.WriteFile(path, vars, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %v", path, err)
		}
		fmt.Printf("✓ Rendered %s\n", path)
	}
	return nil
}
