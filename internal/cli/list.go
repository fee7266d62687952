package cli

import (
	"encoding/json"

	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descs := plugin.NewRegistry(log).Descriptors()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(descs)
			}

			t := newTable("ID", "NAME", "VERSION")
			for _, d := range descs {
				t.Row(d.ID, d.Name, d.Version)
			}
			renderTable(out, t)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}
