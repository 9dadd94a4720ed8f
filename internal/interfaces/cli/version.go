package cli

import (
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := Info()
			if f := cmd.Flag("output"); f != nil && f.Value.String() == "json" {
				return printJSON(cmd, info)
			}
			return printText(cmd, info)
		},
	}
}

//Personal.AI order the ending
