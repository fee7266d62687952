package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/gateway"
	"github.com/soyeahso/plugcat/internal/hooks"
	"github.com/soyeahso/plugcat/internal/logging"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		bind        string
		autoRestart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WebSocket gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoRestart {
				go autorestart.RestartOnChange()
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := app.cfg
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				return &config.ConfigError{Message: issues[0].String()}
			}

			if logLevel == "" {
				log = logging.NewStyled(cfg.Logging.Style, cfg.Logging.Level)
			}

			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			app.hooks.On(hooks.EventRunFailed, "log", func(_ context.Context, p hooks.Payload) error {
				log.Info().
					Interface("plugin", p.Data["plugin"]).
					Interface("code", p.Data["code"]).
					Interface("source", p.Data["source"]).
					Msg("plugin run failed")
				return nil
			})

			srv := gateway.New(cfg, app.exec, log,
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(app.hooks),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().BoolVar(&autoRestart, "autorestart", false, "restart the process when its binary changes")
	return cmd
}
