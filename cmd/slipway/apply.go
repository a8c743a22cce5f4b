package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/manifest"
	"github.com/slipway-sh/slipway/pkg/provision"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
	"github.com/slipway-sh/slipway/pkg/validate"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply descriptor manifests",
	Long: `Apply descriptors from YAML manifests.

Topologies are rendered into provisioning variables and handed to the
provisioning engine; workloads are stored as the desired state the
next pipeline run delivers. Nothing is stored until every descriptor
in the bundle passes validation.

Examples:
  # Apply a topology
  slipway apply -f topology.yaml

  # Apply a directory of manifests
  slipway apply -f manifests/ --data-dir /var/lib/slipway`,
	RunE: runApply,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy CLUSTER",
	Short: "Tear down a cluster topology",
	Long: `Remove a cluster topology and its provisioning variables, along
with the stored workloads targeting it and its run history.

Teardown is always explicit: re-submitting a topology replaces it,
but only this command removes one.`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

func init() {
	applyCmd.Flags().StringSliceP("file", "f", nil, "Manifest file or directory (repeatable, required)")
	applyCmd.Flags().String("data-dir", "./slipway-data", "Data directory for descriptor and run state")
	applyCmd.Flags().String("vars-dir", "./tfvars", "Directory provisioning variables are written to")
	_ = applyCmd.MarkFlagRequired("file")

	destroyCmd.Flags().String("data-dir", "./slipway-data", "Data directory for descriptor and run state")
	destroyCmd.Flags().String("vars-dir", "./tfvars", "Directory provisioning variables are written to")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	varsDir, _ := cmd.Flags().GetString("vars-dir")

	bundle, err := manifest.NewLoader(nil).Load(files...)
	if err != nil {
		return err
	}
	if bundle.Empty() {
		return fmt.Errorf("no descriptors found in %v", files)
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}
	defer store.Close()

	// Workloads may target topologies applied earlier, so cross-checks
	// run against the stored topologies plus the bundle's own.
	stored, err := store.ListTopologies()
	if err != nil {
		return fmt.Errorf("failed to list topologies: %v", err)
	}
	known := append(stored, bundle.Topologies...)

	if err := validateBundle(bundle, known); err != nil {
		return err
	}

	prov := provision.NewDirProvisioner(nil, varsDir, nil)

	for _, ct := range bundle.Topologies {
		receipt, err := prov.Apply(context.Background(), ct)
		if err != nil {
			return fmt.Errorf("failed to provision topology %s: %v", ct.Name, err)
		}
		if err := store.SaveTopology(ct); err != nil {
			return fmt.Errorf("failed to store topology %s: %v", ct.Name, err)
		}
		fmt.Printf("✓ Topology %s: %s (%s)\n", ct.Name, receipt.Outcome, receipt.Path)
	}

	for _, wd := range bundle.Workloads {
		if err := store.SaveWorkload(wd); err != nil {
			return fmt.Errorf("failed to store workload %s: %v", wd.Key(), err)
		}
		fmt.Printf("✓ Workload stored: %s\n", wd.Key())
	}

	if n := len(bundle.Images); n > 0 {
		fmt.Printf("✓ %d image descriptor(s) validated; pass them to 'slipway run'\n", n)
	}
	return nil
}

func runDestroy(cmd *cobra.Command, args []string) error {
	cluster := args[0]
	dataDir, _ := cmd.Flags().GetString("data-dir")
	varsDir, _ := cmd.Flags().GetString("vars-dir")

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}
	defer store.Close()

	prov := provision.NewDirProvisioner(nil, varsDir, nil)

	receipt, err := prov.Destroy(context.Background(), cluster)
	if err != nil {
		return fmt.Errorf("failed to destroy topology %s: %v", cluster, err)
	}
	if err := store.DeleteTopology(cluster); err != nil {
		return fmt.Errorf("failed to remove topology %s: %v", cluster, err)
	}

	// Workloads targeting the cluster and its run history go with it;
	// both describe a cluster that no longer exists.
	workloads, err := store.ListWorkloads()
	if err != nil {
		return fmt.Errorf("failed to list workloads: %v", err)
	}
	removed := 0
	for _, wd := range workloads {
		if wd.Cluster != cluster {
			continue
		}
		if err := store.DeleteWorkload(wd.Namespace, wd.Name); err != nil {
			return fmt.Errorf("failed to remove workload %s: %v", wd.Key(), err)
		}
		removed++
	}

	runs, err := store.ListRunsByCluster(cluster)
	if err != nil {
		return fmt.Errorf("failed to list runs: %v", err)
	}
	for _, run := range runs {
		if err := store.DeleteRun(run.ID); err != nil {
			return fmt.Errorf("failed to remove run %s: %v", run.ID, err)
		}
	}

	fmt.Printf("✓ Topology %s destroyed (%s)\n", cluster, receipt.Outcome)
	if removed > 0 {
		fmt.Printf("✓ Removed %d workload(s) targeting %s\n", removed, cluster)
	}
	if len(runs) > 0 {
		fmt.Printf("✓ Removed %d run record(s) for %s\n", len(runs), cluster)
	}
	return nil
}

// validateBundle checks every descriptor and the references between
// them against the given topology set. Nothing is persisted when any
// check fails.
func validateBundle(bundle *manifest.Bundle, topologies []*types.ClusterTopology) error {
	v := validate.New()
	result := validate.Result{}

	for _, ct := range bundle.Topologies {
		result = result.Merge(v.ClusterTopology(ct))
	}
	for _, wd := range bundle.Workloads {
		result = result.Merge(v.Workload(wd))
	}
	for _, im := range bundle.Images {
		result = result.Merge(v.Image(im))
	}
	result = result.Merge(v.CrossReferences(topologies, bundle.Workloads))

	return result.Err()
}
