package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-rom-uf2/internal/composition"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
)

func newBuildCmd() *cobra.Command {
	var output string
	var loadAddress, flashBase, flashSize uint32

	cmd := &cobra.Command{
		Use:   "build <rom>...",
		Short: "Convert ROM files into UF2 images",
		Long: `Convert one or more N64 ROM files into UF2 images.

The image is written next to the ROM with its extension replaced by .uf2,
into --output-dir when set, or to --output for a single ROM.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return fmt.Errorf("--output needs exactly one ROM, got %d", len(args))
			}

			for _, rom := range args {
				req, err := composition.NewBuildRequest(rom)
				if err != nil {
					return err
				}
				req.Output = output

				out, err := composition.BuildFile(cmd.Context(), req)
				if err != nil {
					logger.LogError("build failed", err, map[string]interface{}{"rom": rom})
					return err
				}
				printBuild(cmd, rom, out)
			}
			return nil
		},
	}

	defaults := picocart.DefaultOptions()
	fs := cmd.Flags()
	fs.StringVarP(&output, "output", "o", "", "image path (single ROM only)")
	fs.StringP("output-dir", "O", "", "directory receiving the images")
	fs.BoolP("compress", "c", defaults.Compress, "deduplicate ROM chunks")
	fs.Int("chunk-size", defaults.ChunkSize, "dedup chunk size; must match the firmware build")
	fs.StringP("family", "f", defaults.Family, "board family name or id ("+config.FamilyHelp()+")")
	hexUint32VarP(fs, &loadAddress, "load-address", "", defaults.LoadAddress, "flash address of the first block")
	hexUint32VarP(fs, &flashBase, "flash-base", "", defaults.FlashBase, "flash base address for the bounds check")
	hexUint32VarP(fs, &flashSize, "flash-size", "", defaults.FlashSize, "flash size for the bounds check")
	fs.String("remainder", defaults.Remainder.String(), "trailing partial chunk policy: pad, reject or truncate")
	fs.Bool("strict-flash", defaults.StrictFlash, "fail when the image does not fit in flash")
	fs.String("archive", "none", "also compress the image: gzip, bzip2, xz, zstd or lz4")
	fs.String("manifest", "", "write a manifest next to the image: yaml, json or plist")

	return cmd
}

func printBuild(cmd *cobra.Command, rom string, out *composition.BuildOutput) {
	w := cmd.OutOrStdout()
	s := out.Result.Stats

	fmt.Fprintf(w, "%s -> %s\n", rom, out.Image)
	fmt.Fprintf(w, "  blocks:   %d (%d bytes)\n", s.Blocks, s.ImageSize)
	fmt.Fprintf(w, "  family:   %s\n", s.FamilyName())
	fmt.Fprintf(w, "  flash:    0x%08x-0x%08x\n", s.LoadAddress, s.EndAddress)
	if s.Compressed {
		fmt.Fprintf(w, "  chunks:   %d unique of %d (%d bytes each)\n", s.UniqueChunks, s.Chunks, s.ChunkSize)
		if s.DroppedBytes > 0 {
			fmt.Fprintf(w, "  dropped:  %d trailing bytes\n", s.DroppedBytes)
		}
	}
	if out.Archive != "" {
		fmt.Fprintf(w, "  archive:  %s\n", out.Archive)
	}
	if out.Manifest != "" {
		fmt.Fprintf(w, "  manifest: %s\n", out.Manifest)
	}
	for _, warning := range out.Result.Warnings {
		fmt.Fprintf(w, "  warning:  %v\n", warning)
	}
}
