package cli

import (
	"os"
	"strings"

	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// set by PersistentPreRunE
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugcat",
		Short: "plugcat: a catalog of integer arithmetic plugins",
		Long: "plugcat lists, describes and runs a fixed catalog of int32 arithmetic plugins\n" +
			"from the command line or over an HTTP/WebSocket gateway.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = os.Getenv("PLUGCAT_LOG_LEVEL")
			}
			if level == "" {
				level = "warn"
			}
			log = logging.New(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.plugcat/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level ("+levelNames()+")")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func levelNames() string {
	return strings.Join(logging.Levels, ", ")
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
