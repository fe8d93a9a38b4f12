package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-rom-uf2/internal/composition"
)

func newInspectCmd() *cobra.Command {
	var chunkSize int
	var showMapping bool

	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Describe a UF2 image",
		Long: `Decode a UF2 image, which may be archived, and print its header
and layout. For compressed images the unique chunk count assumes
--chunk-size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := composition.InspectFile(args[0], chunkSize)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", args[0])
			fmt.Fprintf(w, "  tag:        %q\n", info.Tag)
			fmt.Fprintf(w, "  compressed: %v\n", info.Compressed)
			fmt.Fprintf(w, "  blocks:     %d\n", info.Blocks)
			fmt.Fprintf(w, "  flags:      %s\n", info.Flags)
			if info.FamilyName != "" {
				fmt.Fprintf(w, "  family:     %s (0x%08x)\n", info.FamilyName, info.FamilyID)
			} else {
				fmt.Fprintf(w, "  family:     0x%08x\n", info.FamilyID)
			}
			fmt.Fprintf(w, "  load:       0x%08x\n", info.LoadAddress)
			fmt.Fprintf(w, "  payload:    %d bytes\n", info.PayloadSize)
			if info.Compressed {
				fmt.Fprintf(w, "  mapping:    %d entries in use\n", info.MappingEntries)
				fmt.Fprintf(w, "  unique:     %d chunks\n", info.UniqueChunks)
				if showMapping {
					for i, idx := range info.Mapping[:info.MappingEntries] {
						fmt.Fprintf(w, "    %5d -> %d\n", i, idx)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size the image was built with (default 1024)")
	cmd.Flags().BoolVar(&showMapping, "mapping", false, "print every mapping entry in use")
	return cmd
}
