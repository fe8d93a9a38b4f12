package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

func newFamiliesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the known UF2 board families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range uf2.FamilyNames() {
				id, err := uf2.FamilyID(name)
				if err != nil {
					return err
				}
				marker := ""
				if name == uf2.DefaultFamily {
					marker = "(default)"
				}
				fmt.Fprintf(tw, "0x%08x\t%s\t%s\n", id, name, marker)
			}
			return tw.Flush()
		},
	}
}
