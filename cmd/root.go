package cmd

import (
	"os"

	"github.com/BioHazard786/meshcall/internal/logging"
	"github.com/BioHazard786/meshcall/internal/ui"
	"github.com/BioHazard786/meshcall/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meshcall",
	Short: "Full-mesh WebRTC calls coordinated through a signaling server",
	Long: `meshcall joins a channel on a signaling server and negotiates a direct
WebRTC session with every other participant. The participant with the
smaller uid always sends the offer, so each pair negotiates exactly once.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Flags override LOG_LEVEL / LOG_FORMAT picked up in main.
		if cmd.Flags().Changed("log-level") || cmd.Flags().Changed("log-format") {
			level := firstSet(flagLogLevel, os.Getenv("LOG_LEVEL"))
			format := firstSet(flagLogFormat, os.Getenv("LOG_FORMAT"))
			logging.SetDefault(logging.New(os.Stderr, level, format))
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json (env LOG_FORMAT)")
}
