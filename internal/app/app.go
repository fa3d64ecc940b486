package app

import (
	"github.com/spf13/cobra"

	"github.com/xab-mack/solbench/internal/cli"
)

func BuildRoot() *cobra.Command {
	root := &cobra.Command{Use: "solbench", Short: "Resource-bounded analyzer orchestration for smart-contract corpora"}
	cli.AddCommands(root)
	return root
}
