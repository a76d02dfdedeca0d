package main

import (
	"os"

	"github.com/cchalm/bedrock-chat/app/bedrock-chat/cmd"
)

// Version information set by ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, GitCommit, BuildTime)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
