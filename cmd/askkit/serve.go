package main

import (
	"os"

	"AskKit/internal/config"
	"AskKit/internal/ipc"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend for remote launchers",
		Long: `Serves the launcher commands and events without a UI.
With --transport ws or http it listens on --addr (/ws, /rpc and /events).
With --transport stdio it speaks line delimited JSON-RPC on stdin and stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close()

			router, err := e.openBackend(ctx)
			if err != nil {
				return err
			}
			srv := ipc.NewServer(router, e.logger)

			switch e.cfg.Bridge.Transport {
			case config.TransportStdio:
				e.logger.Info("serving on stdio")
				return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
			default:
				// inproc has nothing to serve; listen on the network instead
				return srv.ListenAndServe(ctx, e.cfg.Bridge.Addr)
			}
		},
	}
}
