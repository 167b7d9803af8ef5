package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/app"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/utils"
)

// RunCommand returns the CLI command that starts the background agent
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Run the sync agent",
		Description: "Watch the configured folders and push changed projects to GitHub until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress per-event terminal output",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if err := application.RequireReady(); err != nil {
		utils.PrintError(err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.Bool("quiet") {
		events, unsubscribe := application.Notifier.Subscribe()
		defer unsubscribe()
		go printEvents(ctx, events)
	}

	if err := application.StartAgent(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	utils.PrintHeading("Shepherd agent running")
	utils.PrintKeyValue("Account", application.Settings.Account)
	utils.PrintKeyValue("Watch roots", fmt.Sprintf("%d configured", len(application.Settings.WatchRoots)))
	utils.PrintInfo("Press Ctrl-C to stop")

	<-ctx.Done()
	application.WaitAgent()

	fmt.Println()
	utils.PrintInfo("Agent stopped")
	return nil
}

func printEvents(ctx context.Context, events <-chan notify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Level {
			case notify.LevelSuccess:
				utils.PrintSuccess(ev.Message)
			case notify.LevelWarning:
				utils.PrintWarning(ev.Message)
			case notify.LevelError:
				utils.PrintError(ev.Message)
			default:
				utils.PrintInfo(ev.Message)
			}
		}
	}
}
