package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/xchain-orchestrator/pkg/app"
	"github.com/chainsafe/xchain-orchestrator/pkg/app/orchestrator"
	"github.com/chainsafe/xchain-orchestrator/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = orchestrator.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator exited with error: %v\n", err)
		os.Exit(1)
	}
}
