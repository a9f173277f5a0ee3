package main

import (
	"os"

	"github.com/OFFIS-RIT/coordnet/pkg/logger"
	"github.com/OFFIS-RIT/coordnet/pkg/logger/console"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "simnet",
		Short:         "Build and fuse account similarity networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func main() {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))

	if err := newRootCmd().Execute(); err != nil {
		logger.Error("simnet failed", "err", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("simnet " + version + "\n"))
			return err
		},
	}
}
