package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/client"
	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show pipeline run status",
	Long: `Show recorded pipeline runs.

Without arguments the most recent runs are listed. Given a run id,
the full stage-by-stage record is shown. By default the local data
directory is read; --addr reads from a running process's status API
instead, which is the only way in while that process holds the store.

Examples:
  # List runs, newest first
  slipway status

  # List runs for one cluster
  slipway status --cluster prod-east

  # Show one run in detail
  slipway status 5f0c2a4e-7d19-4a8b-9f3e-2c61d04b8a17

  # Read from a running pipeline's status API
  slipway status --addr 127.0.0.1:9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("data-dir", "./slipway-data", "Data directory for descriptor and run state")
	statusCmd.Flags().String("cluster", "", "Only list runs for this cluster")
	statusCmd.Flags().String("addr", "", "Status API address to read from instead of the data directory")

	rootCmd.AddCommand(statusCmd)
}

// runReader is the slice of the store the status command needs. The
// bolt store and the status API client both satisfy it.
type runReader interface {
	GetRun(id string) (*types.PipelineRun, error)
	ListRuns() ([]*types.PipelineRun, error)
	ListRunsByCluster(cluster string) ([]*types.PipelineRun, error)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	cluster, _ := cmd.Flags().GetString("cluster")
	addr, _ := cmd.Flags().GetString("addr")

	var reader runReader
	if addr != "" {
		c := client.New(addr)
		defer c.Close()

		health, err := c.Health()
		if err != nil {
			return fmt.Errorf("failed to reach status API at %s: %v", addr, err)
		}
		fmt.Printf("Server %s: %s (version %s, up %s)\n\n", addr, health.Status, health.Version, health.Uptime)
		reader = c
	} else {
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()
		reader = store
	}

	if len(args) == 1 {
		return showRun(reader, args[0])
	}
	return listRecordedRuns(reader, cluster)
}

func showRun(reader runReader, id string) error {
	run, err := reader.GetRun(id)
	if err != nil {
		return fmt.Errorf("failed to load run: %v", err)
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Workload: %s\n", run.Workload)
	fmt.Printf("Cluster:  %s\n", run.Cluster)
	fmt.Printf("Commit:   %s (branch %s)\n", run.Trigger.CommitID, run.Trigger.Branch)
	fmt.Printf("State:    %s\n", run.State)
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", run.Error)
	}
	if !run.Artifact.IsZero() {
		fmt.Printf("Artifact: %s\n", run.Artifact)
	}
	fmt.Println()
	printStages(run)
	return nil
}

func listRecordedRuns(reader runReader, cluster string) error {
	var runs []*types.PipelineRun
	var err error
	if cluster != "" {
		runs, err = reader.ListRunsByCluster(cluster)
	} else {
		runs, err = reader.ListRuns()
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	fmt.Printf("%-36s  %-16s  %-10s  %-20s  %s\n", "RUN", "CLUSTER", "STATE", "CREATED", "COMMIT")
	for _, run := range runs {
		fmt.Printf("%-36s  %-16s  %-10s  %-20s  %s\n",
			run.ID, run.Cluster, run.State,
			run.CreatedAt.Format(time.RFC3339), shortCommit(run.Trigger.CommitID))
	}
	return nil
}

// printStages renders one line per stage with state, duration and any
// error recorded against it.
func printStages(run *types.PipelineRun) {
	for _, stage := range run.Stages {
		line := fmt.Sprintf("  %-20s %-10s", stage.Name, stage.State)
		if d := stage.Duration(); d > 0 {
			line += fmt.Sprintf(" %s", d.Round(time.Millisecond))
		}
		if stage.Error != "" {
			line += fmt.Sprintf("  %s", stage.Error)
		}
		fmt.Println(line)
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
