package main

import (
	"fmt"
	"os"
	"path/filepath"

	"voice-analyze/models"
	"voice-analyze/service"
	"voice-analyze/voice"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and socket.io server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if proto, _ := cmd.Flags().GetString("proto"); cmd.Flags().Changed("proto") {
			cfg.Server.Protocol = proto
		}
		if port, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <speaker> <file.wav>...",
	Short: "Enroll one or more WAV files for a speaker",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			speaker := args[0]
			for _, path := range args[1:] {
				data, err := os.ReadFile(filepath.Clean(path))
				if err != nil {
					return err
				}
				if err := svc.Enroll(cmd.Context(), speaker, data); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s for %s\n", path, speaker)
			}
			return nil
		})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <file.wav>",
	Short: "Identify the speaker of a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			match, err := svc.Identify(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(match)
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.wav>",
	Short: "Run sentiment and speaker analysis on a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			text, _ := cmd.Flags().GetString("text")
			res, err := svc.Analyze(cmd.Context(), service.AnalyzeRequest{Audio: data, Text: text})
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.wav>",
	Short: "Print the acoustic feature vector of a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(filepath.Clean(args[0]))
		if err != nil {
			return err
		}
		audio, err := voice.NewWAVDecoder(cfg.Pipeline.TargetSampleRate).Decode(data)
		if err != nil {
			return err
		}
		features, err := voice.ExtractFeatureVector(audio.Samples, audio.SampleRate)
		if err != nil {
			return err
		}

		names := voice.FeatureNames()
		type feature struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		}
		out := struct {
			SampleRate int       `json:"sample_rate"`
			Duration   float64   `json:"duration"`
			Features   []feature `json:"features"`
		}{SampleRate: audio.SampleRate, Duration: audio.Duration}
		for i, v := range features {
			out.Features = append(out.Features, feature{Name: names[i], Value: v})
		}
		return printJSON(out)
	},
}

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "List enrolled speakers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(svc *service.Service) error {
			stats := svc.Speakers()
			return printJSON(models.SpeakersResponse{Count: len(stats), Speakers: stats})
		})
	},
}

// withService builds the pipeline without the metrics exporter, runs fn and
// closes everything.
func withService(cmd *cobra.Command, fn func(*service.Service) error) error {
	a, err := newApp(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())
	return fn(a.svc)
}

func init() {
	serveCmd.Flags().String("proto", "http", "protocol to use (http or https)")
	serveCmd.Flags().StringP("port", "p", "5001", "port to listen on")
	analyzeCmd.Flags().String("text", "", "transcript echoed back in the result")

	rootCmd.AddCommand(serveCmd, enrollCmd, identifyCmd, analyzeCmd, extractCmd, speakersCmd)
}
