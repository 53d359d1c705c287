package main

import (
	"path/filepath"

	"AskKit/internal/app"
	"AskKit/internal/config"
	"AskKit/internal/launcher"
	"AskKit/internal/session"
	"AskKit/internal/tui"

	"github.com/spf13/cobra"
)

// flags shared by every command; they override the config file
type globalFlags struct {
	configPath string
	dataDir    string
	logDir     string
	debug      bool
	transport  string
	addr       string
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&globalFlags{})
}

func buildRootCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "askkit",
		Short: "Chat with LLM agents from the terminal",
		Long: `askkit is a chat launcher for Gemini, OpenAI, Groq, Anthropic and Ollama agents.
Chats and agent settings live in a local sqlite database; API keys are stored encrypted.
Without a subcommand it opens the interactive launcher.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLauncher(cmd, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "Path to the TOML config file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Directory holding the database, key and launcher state")
	pf.StringVar(&flags.logDir, "log-dir", "", "Directory for logs, traces and metrics")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.transport, "transport", "", "Bridge transport (inproc|ws|http|stdio)")
	pf.StringVar(&flags.addr, "addr", "", "Bridge address for ws and http")

	cmd.AddCommand(
		newServeCmd(flags),
		newAgentsCmd(flags),
		newChatsCmd(flags),
	)
	return cmd
}

// loadConfig reads the config file and applies the flags the user set
func loadConfig(cmd *cobra.Command, flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("data-dir") {
		cfg.DataDir = flags.dataDir
		if !changed("log-dir") {
			cfg.LogDir = filepath.Join(flags.dataDir, "logs")
		}
	}
	if changed("log-dir") {
		cfg.LogDir = flags.logDir
	}
	if changed("debug") {
		cfg.Debug = flags.debug
	}
	if changed("transport") {
		cfg.Bridge.Transport = flags.transport
	}
	if changed("addr") {
		cfg.Bridge.Addr = flags.addr
	}
	return cfg, cfg.Normalize()
}

func runLauncher(cmd *cobra.Command, flags *globalFlags) error {
	ctx := cmd.Context()
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	defer e.close()

	br, err := e.bridge(ctx)
	if err != nil {
		return err
	}

	layout := launcher.LoadLayout(launcher.LayoutOptions{
		StaleTime: e.cfg.StaleTime,
		Theme:     e.cfg.Theme,
		Logger:    e.logger,
	})
	rt := &app.Runtime{
		Query:   layout.Query,
		Session: session.New(),
		Invoker: br,
		Events:  br,
		Logger:  e.logger,
	}
	return tui.Run(ctx, tui.Options{
		Runtime: rt,
		Storage: launcher.NewDiskStorage(e.cfg.StoragePath()),
		Theme:   layout.Theme,
	})
}
