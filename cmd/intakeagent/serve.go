package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/server"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat relay, session API and websocket endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, closeLog, err := root.load()
			if err != nil {
				return err
			}
			defer closeLog()
			if addr != "" {
				conf.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, conf)
			if err != nil {
				return err
			}
			defer a.Close()
			srv, err := server.New(a.flow, a.client, server.WithAllowedOrigins(conf.Server.AllowedOrigins...))
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, conf.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
