package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/app"
	"github.com/tildaslashalef/shepherd/internal/history"
	"github.com/tildaslashalef/shepherd/internal/utils"
)

// HistoryCommand returns the CLI command that lists past sync batches
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:        "history",
		Usage:       "Show past sync batches",
		Description: "List recent sync batches from the local history database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of batches to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "batch",
				Aliases: []string{"b"},
				Usage:   "Show per-project outcomes of one batch",
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Show recent outcomes for one project path",
			},
		},
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if application.History == nil {
		utils.PrintError("Sync history database is unavailable")
		return fmt.Errorf("sync history unavailable")
	}

	switch {
	case c.String("batch") != "":
		return printBatchOutcomes(c, application)
	case c.String("project") != "":
		return printProjectOutcomes(c, application)
	default:
		return printRecentBatches(c, application)
	}
}

func printRecentBatches(c *cli.Context, application *app.App) error {
	batches, err := application.History.RecentBatches(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}
	if len(batches) == 0 {
		utils.PrintInfo("No sync batches recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.ID,
			b.Trigger,
			utils.FormatRelativeTime(b.StartedAt),
			fmt.Sprintf("%d", b.Total),
			fmt.Sprintf("%d", b.Completed),
			fmt.Sprintf("%d", b.Failed),
		})
	}
	utils.PrintTable("Sync batches", []string{"Batch", "Trigger", "Started", "Total", "Synced", "Failed"}, rows)
	return nil
}

func printBatchOutcomes(c *cli.Context, application *app.App) error {
	batchID := c.String("batch")
	outcomes, err := application.History.OutcomesForBatch(c.Context, batchID)
	if err != nil {
		return fmt.Errorf("listing outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		utils.PrintInfo(fmt.Sprintf("No outcomes recorded for batch %s", batchID))
		return nil
	}

	printOutcomeTable(fmt.Sprintf("Batch %s", batchID), outcomes)
	return nil
}

func printProjectOutcomes(c *cli.Context, application *app.App) error {
	path := c.String("project")
	outcomes, err := application.History.OutcomesForProject(c.Context, path, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		utils.PrintInfo(fmt.Sprintf("No outcomes recorded for %s", path))
		return nil
	}

	printOutcomeTable(path, outcomes)
	return nil
}

func printOutcomeTable(title string, outcomes []*history.Outcome) {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		detail := o.Error
		if o.Status == history.OutcomeSynced {
			detail = fmt.Sprintf("%d file(s)", o.FilesCommitted)
			if o.CreatedRepo {
				detail += ", repo created"
			}
		}
		rows = append(rows, []string{
			o.ProjectName,
			o.RepoName,
			o.Status,
			utils.FormatRelativeTime(o.FinishedAt),
			detail,
		})
	}
	utils.PrintTable(title, []string{"Project", "Repo", "Status", "Finished", "Detail"}, rows)
}
