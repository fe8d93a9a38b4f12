package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-rom-uf2/internal/checksum"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/cryptoutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/composition"
)

func newChecksumCmd() *cobra.Command {
	var r checksum.Range
	var hashes []string
	var verify string

	cmd := &cobra.Command{
		Use:   "checksum <file>...",
		Short: "Print CRC32, MD5 and SHA-1 of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []cryptoutil.HashAlgorithm
			for _, h := range hashes {
				extra = append(extra, cryptoutil.HashAlgorithm(strings.ToLower(strings.TrimSpace(h))))
			}

			w := cmd.OutOrStdout()
			for _, path := range args {
				report, digests, err := composition.ChecksumFile(cmd.Context(), path, r, checksum.SHA1Digester, extra...)
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "%s\n", path)
				fmt.Fprintf(w, "  crc32:  %s\n", report.CRC32)
				fmt.Fprintf(w, "  md5:    %s\n", report.MD5)
				if report.SHA1Err != nil {
					fmt.Fprintf(w, "  sha1:   unavailable (%v)\n", report.SHA1Err)
				} else {
					fmt.Fprintf(w, "  sha1:   %s\n", report.SHA1)
				}

				algs := make([]string, 0, len(digests))
				for alg := range digests {
					algs = append(algs, string(alg))
				}
				sort.Strings(algs)
				for _, alg := range algs {
					fmt.Fprintf(w, "  %s: %s\n", alg, digests[cryptoutil.HashAlgorithm(alg)])
				}

				if verify != "" {
					alg, err := composition.VerifyFile(path, verify)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "  verify: %s OK\n", alg)
				}
			}
			return nil
		},
	}

	names := make([]string, 0)
	for _, alg := range cryptoutil.Algorithms() {
		names = append(names, string(alg))
	}
	cmd.Flags().IntVar(&r.HeaderSize, "header-size", 0, "skip this many leading bytes")
	cmd.Flags().BoolVar(&r.IgnoreLast4Bytes, "ignore-last4", false, "exclude the trailing 4 bytes")
	cmd.Flags().StringSliceVar(&hashes, "hash", nil, "extra digests ("+strings.Join(names, ", ")+")")
	cmd.Flags().StringVar(&verify, "verify", "", "expected digest as algorithm:hex, e.g. sha256:15e2...")
	return cmd
}
