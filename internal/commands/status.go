package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/app"
	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/utils"
)

// StatusCommand returns the CLI command that prints the agent snapshot
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:        "status",
		Usage:       "Show project and sync status",
		Description: "Scan the watch roots and print the state of every known project",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the snapshot as JSON",
			},
		},
		Action: statusAction,
	}
}

var statusColors = map[project.Status]*color.Color{
	project.StatusReady:     color.New(color.FgHiBlack),
	project.StatusChanged:   color.New(color.FgYellow),
	project.StatusQueued:    color.New(color.FgCyan),
	project.StatusSyncing:   color.New(color.FgBlue),
	project.StatusSynced:    color.New(color.FgGreen),
	project.StatusError:     color.New(color.FgRed),
	project.StatusNeedsRepo: color.New(color.FgMagenta),
}

func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	// The status command runs in its own process, so the registry starts
	// empty; one scan and one detection pass fill it in.
	application.Scanner.ScanOnce(application.Settings.WatchRoots)
	application.Detector.CheckOnce()
	application.Network.CheckNow(c.Context)

	snap := application.Status.Snapshot()

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	utils.PrintHeading("Shepherd status")
	utils.PrintKeyValue("Phase", string(snap.Phase))
	utils.PrintKeyValue("Network", onlineLabel(snap.Online))
	utils.PrintKeyValue("Last probe", utils.FormatRelativeTime(snap.LastProbe))
	utils.PrintKeyValue("Queued", fmt.Sprintf("%d", snap.QueueLen))
	if !snap.Batch.StartedAt.IsZero() {
		utils.PrintKeyValue("Last batch", fmt.Sprintf("%d/%d synced, %.2f projects/s",
			snap.Batch.Completed, snap.Batch.Total, snap.Batch.Throughput))
	}
	if application.Settings.Account != "" {
		utils.PrintKeyValue("Account", application.Settings.Account)
	} else {
		utils.PrintWarning("No GitHub account configured, run 'shepherd init'")
	}
	fmt.Println()

	if len(snap.Projects) == 0 {
		utils.PrintInfo("No projects found under the watch roots")
		return nil
	}

	rows := make([][]string, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		statusCell := string(p.Status)
		if cc, ok := statusColors[p.Status]; ok {
			statusCell = cc.Sprint(statusCell)
		}
		rows = append(rows, []string{p.Name, statusCell, p.Language, p.Message})
	}
	utils.PrintTable("Projects", []string{"Project", "Status", "Language", "Detail"}, rows)

	return nil
}

func onlineLabel(online bool) string {
	if online {
		return color.GreenString("online")
	}
	return color.RedString("offline")
}
