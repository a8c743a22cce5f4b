package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/api"
	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/manifest"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/orchestrator/kube"
	"github.com/slipway-sh/slipway/pkg/pipeline"
	"github.com/slipway-sh/slipway/pkg/registry"
	"github.com/slipway-sh/slipway/pkg/source"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
	"github.com/slipway-sh/slipway/pkg/validate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the delivery pipeline for a commit",
	Long: `Run the five-stage delivery pipeline for one commit.

The manifests must contain the target Workload and the Image recipe
its artifact is built from. The pipeline fetches the commit, builds
and publishes the image, acquires cluster credentials and submits the
workload. Interrupting the command cancels the run; the stage that is
running finishes first.

Examples:
  # Deliver a commit to the cluster the workload targets
  slipway run -f manifests/ --repo https://github.com/acme/checkout.git \
    --commit 8c53f6a0d1e24b9a --kube-server https://prod-east.example.com:6443

  # Serve run status, health and metrics while the pipeline works
  slipway run -f manifests/ --repo ... --commit ... --kube-server ... \
    --status-addr 127.0.0.1:9090`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceP("file", "f", nil, "Manifest file or directory (repeatable, required)")
	runCmd.Flags().String("repo", "", "Git remote the pipeline fetches from (required)")
	runCmd.Flags().String("commit", "", "Commit id to deliver (required)")
	runCmd.Flags().String("branch", "main", "Branch the commit belongs to")
	runCmd.Flags().String("kube-server", "", "Target cluster API server URL (required)")
	runCmd.Flags().String("data-dir", "./slipway-data", "Data directory for descriptor and run state")
	runCmd.Flags().String("workspace-dir", "", "Directory source checkouts are created under (default: system temp)")
	runCmd.Flags().Duration("credential-ttl", time.Hour, "Lifetime of acquired cluster credentials")
	runCmd.Flags().String("status-addr", "", "Serve run status, health and metrics on this address")
	_ = runCmd.MarkFlagRequired("file")
	_ = runCmd.MarkFlagRequired("repo")
	_ = runCmd.MarkFlagRequired("commit")
	_ = runCmd.MarkFlagRequired("kube-server")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	repo, _ := cmd.Flags().GetString("repo")
	commit, _ := cmd.Flags().GetString("commit")
	branch, _ := cmd.Flags().GetString("branch")
	kubeServer, _ := cmd.Flags().GetString("kube-server")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	workspaceDir, _ := cmd.Flags().GetString("workspace-dir")
	credentialTTL, _ := cmd.Flags().GetDuration("credential-ttl")
	statusAddr, _ := cmd.Flags().GetString("status-addr")

	target, err := loadTarget(files)
	if err != nil {
		return err
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}
	defer store.Close()

	if workspaceDir == "" {
		workspaceDir = filepath.Join(os.TempDir(), "slipway")
	}

	broker := events.NewBroker()
	engines := pipeline.Engines{
		Fetcher:   source.NewGitFetcher(repo, workspaceDir),
		Builder:   registry.NewCraneBuilder(target.Image),
		Publisher: registry.NewRemotePublisher(),
		// Queued runs on the same cluster reuse a live handle instead of
		// minting one each; the skew keeps a reused handle alive through
		// the apply stage.
		Credentials: credentials.NewCachingSource(credentials.NewStaticSource(credentialTTL), 5*time.Minute),
		Submitter:   kube.NewSubmitter(kubeServer),
	}

	coord := pipeline.NewCoordinator(pipeline.Config{Branch: branch}, engines, store, broker)
	defer coord.Stop()

	if recovered, err := coord.Recover(); err != nil {
		return fmt.Errorf("failed to recover interrupted runs: %v", err)
	} else if recovered > 0 {
		fmt.Printf("Marked %d interrupted run(s) failed\n", recovered)
	}

	if statusAddr != "" {
		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, "store open")
		metrics.RegisterComponent("coordinator", true, "accepting triggers")

		collector := metrics.NewCollector(store)
		collector.Start()
		defer collector.Stop()

		statusServer := api.NewServer(store)
		go func() {
			if err := statusServer.Start(statusAddr); err != nil {
				log.Errorf("status server failed", err)
			}
		}()
		defer func() {
			if err := statusServer.Stop(); err != nil {
				log.Errorf("failed to stop status server", err)
			}
		}()
	}

	sub := broker.Subscribe(
		events.EventStageStarted,
		events.EventStageSucceeded,
		events.EventStageFailed,
	)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printStageEvents(sub)
	}()

	trigger := types.TriggerEvent{
		CommitID:   commit,
		Branch:     branch,
		ReceivedAt: time.Now().UTC(),
	}
	run, err := coord.Submit(pipeline.Target{Workload: target.Workload, Image: target.Image}, trigger)
	if err != nil {
		return fmt.Errorf("failed to submit trigger: %v", err)
	}
	fmt.Printf("✓ Run %s queued (workload %s, cluster %s)\n", run.ID, target.Workload.Key(), target.Workload.Cluster)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	resultCh := make(chan *types.PipelineRun, 1)
	errCh := make(chan error, 1)
	go func() {
		final, err := coord.Await(context.Background(), run.ID)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- final
	}()

	var final *types.PipelineRun
	select {
	case final = <-resultCh:
	case err := <-errCh:
		return fmt.Errorf("failed to await run: %v", err)
	case <-sigCh:
		fmt.Println("\nCancelling run...")
		if err := coord.Cancel(run.ID); err != nil {
			log.Errorf("failed to cancel run", err)
		}
		select {
		case final = <-resultCh:
		case err := <-errCh:
			return fmt.Errorf("failed to await run: %v", err)
		}
	}

	// Let buffered stage lines land before the summary.
	sub.Close()
	<-printed

	printRunSummary(final)
	if final.State != types.RunStateSucceeded {
		return fmt.Errorf("run %s: %s", final.ID, final.Error)
	}
	return nil
}

// loadTarget reads the manifests and picks out the one workload and
// image recipe a run delivers. Invalid descriptors never reach the
// coordinator.
func loadTarget(files []string) (pipeline.Target, error) {
	bundle, err := manifest.NewLoader(nil).Load(files...)
	if err != nil {
		return pipeline.Target{}, err
	}
	if len(bundle.Workloads) != 1 {
		return pipeline.Target{}, fmt.Errorf("manifests must contain exactly one Workload, found %d", len(bundle.Workloads))
	}
	if len(bundle.Images) != 1 {
		return pipeline.Target{}, fmt.Errorf("manifests must contain exactly one Image, found %d", len(bundle.Images))
	}

	v := validate.New()
	result := v.Workload(bundle.Workloads[0])
	result = result.Merge(v.Image(bundle.Images[0]))
	for _, ct := range bundle.Topologies {
		result = result.Merge(v.ClusterTopology(ct))
	}
	if len(bundle.Topologies) > 0 {
		result = result.Merge(v.CrossReferences(bundle.Topologies, bundle.Workloads))
	}
	if err := result.Err(); err != nil {
		return pipeline.Target{}, err
	}

	return pipeline.Target{Workload: bundle.Workloads[0], Image: bundle.Images[0]}, nil
}

// printStageEvents mirrors stage progress onto stdout until the
// subscription closes.
func printStageEvents(sub *events.Subscription) {
	for event := range sub.C {
		switch event.Type {
		case events.EventStageStarted:
			fmt.Printf("  → %s\n", event.Stage)
		case events.EventStageSucceeded:
			color.Green("  ✓ %s", event.Stage)
		case events.EventStageFailed:
			color.Red("  ✗ %s", event.Message)
		}
	}
}

func printRunSummary(run *types.PipelineRun) {
	fmt.Println()
	printStages(run)
	if !run.Artifact.IsZero() {
		fmt.Printf("  Artifact: %s\n", run.Artifact)
	}
	switch run.State {
	case types.RunStateSucceeded:
		color.Green("✓ Run %s succeeded in %s", run.ID, run.Duration().Round(time.Millisecond))
	default:
		color.Red("✗ Run %s %s", run.ID, run.State)
	}
}
