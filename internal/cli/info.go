package cli

import (
	"github.com/soyeahso/plugcat/internal/plugin"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Describe a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plugin.NewRegistry(log).Create(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			field(out, "ID", p.ID())
			field(out, "Name", p.Name())
			field(out, "Version", p.Version())
			field(out, "Description", p.Description())
			field(out, "Icon", p.Image())
			return nil
		},
	}
}
