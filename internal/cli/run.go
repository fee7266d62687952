package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/soyeahso/plugcat/internal/calc"
	"github.com/soyeahso/plugcat/internal/gateway"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		asJSON  bool
		verbose bool
		remote  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <id> <a> <b>",
		Short: "Run a plugin on two int32 operands",
		Example: "  plugcat run AddPlugin 2 3\n" +
			"  plugcat run PowPlugin -- -2 3\n" +
			"  plugcat run MultiplyPlugin 6 7 --remote ws://127.0.0.1:18790/ws",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseOperand("a", args[1])
			if err != nil {
				return err
			}
			b, err := parseOperand("b", args[2])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var out gateway.RunResponse
			if remote != "" {
				out, err = runRemote(ctx, remote, args[0], a, b)
			} else {
				out, err = runLocal(ctx, args[0], a, b)
			}
			if err != nil && out.RunID == "" {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(out); encErr != nil {
					return encErr
				}
			case out.OK:
				fmt.Fprintln(w, out.Value)
			}
			if verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(
					fmt.Sprintf("run %s in %s", out.RunID, time.Duration(out.DurationUs)*time.Microsecond)))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print run id and duration to stderr")
	cmd.Flags().StringVar(&remote, "remote", "", "run on a gateway at this WebSocket URL instead of locally")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (remote runs)")
	return cmd
}

func parseOperand(name, s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("operand %s: %q is not a 32-bit integer", name, s)
	}
	return int32(n), nil
}

func runLocal(ctx context.Context, id string, a, b int32) (gateway.RunResponse, error) {
	app, err := openApp()
	if err != nil {
		return gateway.RunResponse{}, err
	}
	defer app.Close()

	res, err := app.exec.Run(ctx, calc.Request{PluginID: id, A: a, B: b, Source: "cli"})
	if res == nil {
		return gateway.RunResponse{}, err
	}
	out := gateway.NewRunResponse(res, "cli")
	return out, err
}

func runRemote(ctx context.Context, url, id string, a, b int32) (gateway.RunResponse, error) {
	cfg, err := loadConfig()
	if err != nil {
		return gateway.RunResponse{}, err
	}
	auth := gateway.ResolveAuth(cfg.Gateway.Auth)

	r, err := gateway.DialRemote(ctx, url, gateway.ConnectAuth{Token: auth.Token, Password: auth.Password})
	if err != nil {
		return gateway.RunResponse{}, err
	}
	defer r.Close()

	var out gateway.RunResponse
	err = r.Call(ctx, "plugins.run", gateway.RunParams{ID: id, A: &a, B: &b}, &out)

	// Failed runs carry the full response in the error details.
	var re *gateway.RemoteError
	if errors.As(err, &re) && re.Shape.Details != nil {
		if data, mErr := json.Marshal(re.Shape.Details); mErr == nil {
			json.Unmarshal(data, &out)
		}
	}
	return out, err
}
