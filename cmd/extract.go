package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	compression "github.com/deploymenttheory/go-rom-uf2/internal/common/compressionutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/fsutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/composition"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
	"github.com/deploymenttheory/go-rom-uf2/internal/manifest"
)

func newExtractCmd() *cobra.Command {
	var req composition.ExtractRequest

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Rebuild the ROM carried by a UF2 image",
		Long: `Rebuild the ROM carried by a UF2 image, which may be archived.

The ROM size and chunk size come from the flags, then from the manifest
(given with --manifest-file or found next to the image). Without either,
a compressed image is expanded up to its last non-zero mapping entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Input = args[0]
			if req.Manifest == "" {
				req.Manifest = findManifest(req.Input)
			}

			rom, err := composition.ExtractFile(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", req.Input, rom)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "ROM path (default <image>.extracted.z64)")
	cmd.Flags().StringVar(&req.Manifest, "manifest-file", "", "manifest written by build")
	cmd.Flags().IntVar(&req.ChunkSize, "chunk-size", 0, "chunk size the image was built with")
	cmd.Flags().IntVar(&req.RomSize, "rom-size", 0, "original ROM size in bytes")
	return cmd
}

// findManifest looks for a manifest build would have written for image
func findManifest(image string) string {
	base := compression.TrimExt(image)
	for _, f := range []manifest.Format{manifest.FormatYAML, manifest.FormatJSON, manifest.FormatPlist} {
		if path := manifest.PathFor(base, f); fsutil.FileExists(path) {
			logger.LogDebug("using manifest", map[string]interface{}{"path": path})
			return path
		}
	}
	return ""
}
