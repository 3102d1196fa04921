package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/jsh/core"
	"github.com/josephlewis42/jsh/core/config"
	"github.com/josephlewis42/jsh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	command string
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "jsh")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// openEventLog starts recording events to the configured app log. Failing to
// open it only disables recording.
func openEventLog(cfg *config.Configuration, diagnostics *log.Logger) (*logger.Logger, io.Closer) {
	fd, err := cfg.OpenAppLog()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			diagnostics.Printf("event log disabled: %v", err)
		}
		return nil, io.NopCloser(nil)
	}

	events := logger.NewJsonLinesLogRecorder(fd).NewSession()
	events.OnError = func(err error) {
		diagnostics.Printf("event log: %v", err)
	}
	return events, fd
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jsh",
	Short: "A job control shell",
	Long: `jsh runs pipelines of programs as jobs that can be stopped, resumed
and moved between the foreground and the background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		diagnostics := log.New(os.Stderr, "", 0)
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return err
		}

		opts := core.Options{
			Stdin:       os.Stdin,
			Stdout:      os.Stdout,
			Stderr:      os.Stderr,
			Logger:      diagnostics,
			Interactive: command == "",
		}
		events, closer := openEventLog(cfg, diagnostics)
		defer closer.Close()
		if events != nil {
			opts.Events = events
		}

		shell, err := core.NewShell(cfg, opts)
		if err != nil {
			return err
		}

		if command != "" {
			defer shell.Close()
			shell.RunCommand(cmd.Context(), command)
			return nil
		}
		return shell.Run(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
}
