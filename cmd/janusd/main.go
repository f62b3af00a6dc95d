// Command janusd runs the Janus order-execution server.
package main

import (
	"fmt"
	"os"
	"strings"

	"janus/internal/cli"
	"janus/internal/config"
	"janus/internal/logs"
)

func main() {
	configDir := configDirFromArgs(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logs.New()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configDirFromArgs extracts --config before cobra parses flags, since the
// config directory must be known to load the config cobra itself depends on.
func configDirFromArgs(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}
