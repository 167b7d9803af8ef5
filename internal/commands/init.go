package commands

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/app"
	"github.com/tildaslashalef/shepherd/internal/github"
	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/utils"
)

// InitCommand returns the CLI command that writes the initial settings
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:        "init",
		Usage:       "Configure account, token and watch roots",
		Description: "Write the settings document with the GitHub account, access token and the folders to watch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "account",
				Aliases:  []string{"a"},
				Usage:    "GitHub account login the repositories are created under",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "token",
				Aliases:  []string{"t"},
				Usage:    "GitHub personal access token with repo scope",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Folder to watch for projects (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-verify",
				Usage: "Skip checking the token against the GitHub API",
			},
		},
		Action: initAction,
	}
}

func initAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	settings := application.Settings
	settings.Account = c.String("account")
	settings.Token = c.String("token")

	for _, root := range c.StringSlice("root") {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving watch root %q: %w", root, err)
		}
		if !contains(settings.WatchRoots, abs) {
			settings.WatchRoots = append(settings.WatchRoots, abs)
		}
	}
	if len(settings.WatchRoots) == 0 {
		return fmt.Errorf("at least one watch root is required, pass --root")
	}

	if !c.Bool("no-verify") {
		client, err := github.NewClient(application.Config, settings.Account, settings.Token, loggy.GetGlobalLogger())
		if err != nil {
			return fmt.Errorf("creating GitHub client: %w", err)
		}
		if err := client.Verify(c.Context); err != nil {
			utils.PrintError(fmt.Sprintf("Token verification failed: %s", err))
			return err
		}
		utils.PrintSuccess(fmt.Sprintf("Token verified for %s", settings.Account))
	}

	if err := application.SettingsStore.Save(settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	utils.PrintSuccess(fmt.Sprintf("Settings written to %s", application.SettingsStore.Path()))
	utils.PrintKeyValue("Account", settings.Account)
	for _, root := range settings.WatchRoots {
		utils.PrintKeyValue("Watch root", root)
	}
	utils.PrintInfo("Start the agent with 'shepherd run'")

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
