// Package main implements the miniminder server, which schedules reminders
// and delivers them as web push notifications.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "miniminder:", err)
		os.Exit(1)
	}
}

var envFileFlag = cli.StringFlag{
	Name:  "env-file",
	Usage: "dotenv file read before the environment",
	Value: ".env",
}

func newCLI() *cli.App {
	app := cli.NewApp()
	app.Name = "miniminder"
	app.Usage = "reminder scheduling and web push delivery"
	app.UsageText = "miniminder [command] [arguments...]"
	app.HideVersion = true
	app.Flags = []cli.Flag{envFileFlag}
	app.Action = serveAction
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP server and scheduler (default)",
			Flags:  []cli.Flag{envFileFlag},
			Action: serveAction,
		},
		{
			Name:  "migrate",
			Usage: "manage the database schema",
			Flags: []cli.Flag{envFileFlag},
			Subcommands: []cli.Command{
				{Name: "up", Usage: "apply all pending migrations", Action: migrateAction("up")},
				{Name: "down", Usage: "roll back the latest migration", Action: migrateAction("down")},
				{Name: "status", Usage: "list migrations and whether they are applied", Action: migrateAction("status")},
			},
		},
		{
			Name:  "vapid",
			Usage: "generate a VAPID key pair and store it in the dotenv file",
			Flags: []cli.Flag{
				envFileFlag,
				cli.BoolFlag{Name: "print", Usage: "print the keys instead of writing the file"},
			},
			Action: vapidAction,
		},
	}
	return app
}

// envFile returns the --env-file value set on the command or any parent.
func envFile(c *cli.Context) string {
	for ctx := c; ctx != nil; ctx = ctx.Parent() {
		if ctx.IsSet("env-file") {
			return ctx.String("env-file")
		}
	}
	return envFileFlag.Value
}
