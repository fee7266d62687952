package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/soyeahso/plugcat/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		pluginID string
		limit    int
		failed   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent plugin runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if app.history == nil {
				return errors.New("run history is disabled (history.store is \"none\")")
			}
			if limit <= 0 {
				limit = app.cfg.History.Limit
			}

			runs, err := app.history.List(store.Filter{PluginID: pluginID, FailedOnly: failed, Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if runs == nil {
					runs = []store.Run{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no runs recorded"))
				return nil
			}

			t := newTable("STARTED", "PLUGIN", "A", "B", "RESULT", "SOURCE")
			for _, r := range runs {
				result := okStyle.Render(strconv.Itoa(int(r.Result)))
				if !r.OK {
					result = errStyle.Render(r.ErrorCode)
				}
				t.Row(
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.PluginID,
					strconv.Itoa(int(r.A)),
					strconv.Itoa(int(r.B)),
					result,
					r.Source,
				)
			}
			renderTable(out, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&pluginID, "plugin", "", "only show runs of this plugin")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of runs (default history.limit)")
	cmd.Flags().BoolVar(&failed, "failed", false, "only show failed runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}
