package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xab-mack/solbench/internal/analyzers"
	"github.com/xab-mack/solbench/internal/model"
)

func newAnalyzersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "analyzers", Short: "Inspect analyzer backends"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered backends and the artifact modes they support",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := analyzers.Default()
			for _, name := range reg.Names() {
				a, err := reg.Get(name)
				if err != nil {
					return err
				}
				modes := ""
				if a.Supports(model.ModeSource) {
					modes = "source"
				}
				if a.Supports(model.ModeRuntime) {
					if modes != "" {
						modes += ","
					}
					modes += "runtime"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, modes)
			}
			return nil
		},
	})
	return cmd
}
