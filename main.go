// Command voice-analyze serves speaker identification and voice emotion
// analysis over HTTP and socket.io, and offers the same pipeline offline.
//
// Usage:
//
//	voice-analyze [--config voice.yaml] <command> [args]
//
// Commands:
//
//	serve     - run the HTTP/socket.io server
//	enroll    - enroll WAV files for a speaker
//	identify  - identify the speaker of a WAV file
//	analyze   - run sentiment and speaker analysis on a WAV file
//	extract   - print the 129 acoustic features of a WAV file
//	speakers  - list enrolled speakers
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"voice-analyze/config"
	"voice-analyze/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "voice-analyze",
	Short:         "Speaker identification and voice emotion analysis",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		utils.SetLogLevel(loaded.Server.LogLevel)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", utils.GetEnv("VOICE_CONFIG"), "path to a YAML config file")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		logger.ErrorContext(context.Background(), "command failed", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
