// Command portal runs the portal web application.
//
//	portal serve    start the HTTP server
//	portal migrate  apply (or roll back) database migrations
//	portal seed     insert the default demo accounts
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{name: "serve", usage: "start the HTTP server", run: runServe},
	{name: "migrate", usage: "apply database migrations", run: runMigrate},
	{name: "seed", usage: "insert the default demo accounts", run: runSeed},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	name := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		name, args = args[0], args[1:]
	}

	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(ctx, args); err != nil {
			fmt.Fprintf(os.Stderr, "portal %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}

	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: portal <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.usage)
	}
}

// newFlagSet returns a flag set with the flags every command shares.
func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "optional dotenv file loaded before the environment")
	return fs, envFile
}
