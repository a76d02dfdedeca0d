package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cchalm/bedrock-chat/internal/apperr"
	"github.com/cchalm/bedrock-chat/internal/awsauth"
	"github.com/cchalm/bedrock-chat/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "bedrock-chat",
	Short: "Chat with Claude on AWS Bedrock",
	Long: `bedrock-chat authenticates with a local AWS profile, then reads messages from the
console and prints Claude's replies until you type 'exit'.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	PreRunE:       loadRootConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runChat(setupContext(), cfg, dependencies{
			resolver: awsauth.NewResolver(),
			in:       cmd.InOrStdin(),
			out:      cmd.OutOrStdout(),
		})
	},
}

// Execute runs the root command. Errors the chat client already reported to the user are not printed again.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}

func loadRootConfig(cmd *cobra.Command, _ []string) error {
	// Load .env file
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err = resolveConfig(cmd.Flags(), flagConfig)
	if err != nil {
		return err
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}
	return nil
}

func init() {
	bindFlags(rootCmd.PersistentFlags(), &flagConfig)
}
