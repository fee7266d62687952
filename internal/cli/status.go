package cli

import (
	"fmt"
	"strconv"

	"github.com/soyeahso/plugcat/internal/config"
	"github.com/soyeahso/plugcat/internal/gateway"
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/soyeahso/plugcat/internal/store"
	"github.com/soyeahso/plugcat/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, catalog and run history summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("plugcat %s (commit %s)", version.Version, version.Commit)))
			fmt.Fprintln(out)

			field(out, "Config", paths.Config)
			field(out, "Data", paths.Data)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				field(out, "Config", errStyle.Render("error loading: "+err.Error()))
				return nil
			}

			auth := gateway.ResolveAuth(cfg.Gateway.Auth)
			credential := okStyle.Render("set")
			if (auth.Mode == gateway.AuthModeToken && auth.Token == "") ||
				(auth.Mode == gateway.AuthModePassword && auth.Password == "") {
				credential = errStyle.Render("missing")
			}
			field(out, "Gateway", fmt.Sprintf("port=%d bind=%s auth=%s (%s) tls=%v",
				cfg.Gateway.Port, cfg.Gateway.Bind, auth.Mode, credential, cfg.Gateway.TLS.Enabled))
			field(out, "Logging", fmt.Sprintf("level=%s style=%s", cfg.Logging.Level, cfg.Logging.Style))
			field(out, "Plugins", strconv.Itoa(plugin.Default().Count()))

			printHistoryStatus(cmd, cfg)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\n%s\n", errStyle.Render(fmt.Sprintf("Validation issues (%d):", len(issues))))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func printHistoryStatus(cmd *cobra.Command, cfg config.Config) {
	out := cmd.OutOrStdout()

	switch cfg.History.Store {
	case "none":
		field(out, "History", dimStyle.Render("disabled"))
		return
	case "memory":
		field(out, "History", "memory (not kept between runs)")
		return
	}

	path := paths.HistoryDB(cfg.History)
	field(out, "History", "sqlite "+path)

	rs, closer, err := store.OpenRunStore(cfg.History.Store, path, log)
	if err != nil {
		field(out, "", errStyle.Render(err.Error()))
		return
	}
	defer closer.Close()

	stats, err := rs.Stats()
	if err != nil {
		field(out, "", errStyle.Render(err.Error()))
		return
	}
	if len(stats) == 0 {
		return
	}

	fmt.Fprintln(out)
	t := newTable("PLUGIN", "RUNS", "OK", "FAILED", "LAST RUN")
	for _, st := range stats {
		t.Row(
			st.PluginID,
			strconv.Itoa(st.Total),
			okStyle.Render(strconv.Itoa(st.Succeeded)),
			errStyle.Render(strconv.Itoa(st.Failed)),
			st.LastRunAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	renderTable(out, t)
}
