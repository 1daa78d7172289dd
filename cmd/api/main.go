package main

import (
	"fmt"
	"os"

	"github.com/brightbooks/recon-engine/internal/cli"
	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
)

func main() {
	flags := cli.ParseServeFlags()
	cfg := config.LoadOrEnv(flags.ConfigFile)

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "api server error: %v\n", err)
		os.Exit(1)
	}
}
