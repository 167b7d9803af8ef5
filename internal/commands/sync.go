package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/app"
	"github.com/tildaslashalef/shepherd/internal/history"
	"github.com/tildaslashalef/shepherd/internal/utils"
)

// SyncCommand returns the CLI command that runs one manual sync batch
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Usage:       "Sync all projects once",
		Description: "Discover projects under the watch roots, sync every one of them to GitHub, and exit",
		Action:      syncAction,
	}
}

func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if err := application.RequireReady(); err != nil {
		utils.PrintError(err.Error())
		return err
	}

	ctx := c.Context

	if !application.Network.CheckNow(ctx) {
		utils.PrintError("Network unreachable, cannot sync")
		return fmt.Errorf("network unreachable")
	}

	found := application.Scanner.ScanOnce(application.Settings.WatchRoots)
	utils.PrintInfo(fmt.Sprintf("Scanned %d watch root(s), %d project(s) known, %d new",
		len(application.Settings.WatchRoots), application.Registry.Len(), found))

	if application.Registry.Len() == 0 {
		utils.PrintWarning("No projects found under the watch roots")
		return nil
	}

	batch, err := application.Scheduler.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("running sync batch: %w", err)
	}
	if batch == nil {
		utils.PrintInfo("Nothing to sync")
		return nil
	}

	printBatchResult(application, batch)

	if batch.Failed > 0 {
		return fmt.Errorf("%d project(s) failed to sync", batch.Failed)
	}
	return nil
}

func printBatchResult(application *app.App, batch *history.Batch) {
	fmt.Println()
	utils.PrintHeading("Sync results")

	rows := make([][]string, 0, application.Registry.Len())
	for _, p := range application.Registry.List() {
		rows = append(rows, []string{p.Name, string(p.Status), p.Message})
	}
	utils.PrintTable("", []string{"Project", "Status", "Detail"}, rows)

	summary := fmt.Sprintf("%d synced, %d failed in %s",
		batch.Completed, batch.Failed, batch.FinishedAt.Sub(batch.StartedAt).Round(100*time.Millisecond))
	if batch.Failed > 0 {
		utils.PrintWarning(summary)
	} else {
		utils.PrintSuccess(summary)
	}
}
