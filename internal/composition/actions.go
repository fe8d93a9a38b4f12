package composition

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	"github.com/deploymenttheory/go-rom-uf2/internal/checksum"
	compression "github.com/deploymenttheory/go-rom-uf2/internal/common/compressionutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/cryptoutil"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/fsutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
	"github.com/deploymenttheory/go-rom-uf2/internal/manifest"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
)

// BuildRequest describes one ROM file to convert
type BuildRequest struct {
	// Input is the ROM path
	Input string

	// Output is the image path; empty derives it from Input and OutputDir
	Output string

	// OutputDir receives the image when Output is empty; empty means next to Input
	OutputDir string

	Options picocart.Options

	// Archive additionally compresses the image when not FormatNone
	Archive compression.Format

	// Manifest is written next to the image when WriteManifest is set
	Manifest      manifest.Format
	WriteManifest bool

	// Digester computes the ROM SHA-1 for the manifest; nil skips it
	Digester checksum.Digester
}

// BuildOutput lists the files a build produced
type BuildOutput struct {
	Image    string
	Archive  string
	Manifest string
	Result   *picocart.Result
	Checksum *checksum.Report
}

// NewBuildRequest fills a request from the loaded configuration, or from
// the built-in defaults when no configuration was initialized.
func NewBuildRequest(input string) (BuildRequest, error) {
	if config.Viper() == nil {
		return BuildRequest{
			Input:    input,
			Options:  picocart.DefaultOptions(),
			Manifest: manifest.FormatYAML,
			Digester: checksum.SHA1Digester,
		}, nil
	}

	opts, err := config.BuildOptions()
	if err != nil {
		return BuildRequest{}, err
	}
	archive, err := config.Instance.Build.ArchiveFormat()
	if err != nil {
		return BuildRequest{}, err
	}
	format, write, err := config.Instance.Build.ManifestFormat()
	if err != nil {
		return BuildRequest{}, err
	}
	return BuildRequest{
		Input:         input,
		OutputDir:     config.Instance.Build.OutputDir,
		Options:       opts,
		Archive:       archive,
		Manifest:      format,
		WriteManifest: write,
		Digester:      checksum.SHA1Digester,
	}, nil
}

// outputPath resolves where the image goes
func (r BuildRequest) outputPath(fileName string) string {
	if r.Output != "" {
		return r.Output
	}
	if r.OutputDir != "" {
		return filepath.Join(r.OutputDir, filepath.Base(fileName))
	}
	return fileName
}

// BuildFile reads a ROM, builds its image and writes the image plus the
// optional archive and manifest.
func BuildFile(ctx context.Context, req BuildRequest) (*BuildOutput, error) {
	data, err := fsutil.ReadFile(req.Input)
	if err != nil {
		return nil, err
	}
	rom := bytebuf.Wrap(req.Input, data)

	result, err := picocart.Build(ctx, rom, req.Options)
	if err != nil {
		return nil, err
	}

	out := &BuildOutput{
		Image:  req.outputPath(result.FileName),
		Result: result,
	}
	if err := fsutil.WriteFile(out.Image, result.Image.Bytes(), 0644); err != nil {
		return nil, err
	}
	logger.LogInfo("wrote UF2 image", map[string]interface{}{
		"path":   out.Image,
		"blocks": result.Stats.Blocks,
		"bytes":  result.Stats.ImageSize,
	})

	if req.Archive != compression.FormatNone {
		if out.Archive, err = ArchiveFile(out.Image, req.Archive); err != nil {
			return nil, err
		}
	}

	if req.WriteManifest {
		report, err := checksum.Compute(ctx, rom, checksum.Range{}, req.Digester)
		if err != nil {
			return nil, err
		}
		if report.SHA1Err != nil {
			logger.LogWarn("SHA-1 unavailable, manifest will omit it", map[string]interface{}{
				"error": report.SHA1Err.Error(),
			})
		}
		out.Checksum = report

		m := manifest.FromResult(result, manifest.Checksums{
			CRC32: report.CRC32,
			MD5:   report.MD5,
			SHA1:  report.SHA1,
		})
		m.Image = filepath.Base(out.Image)
		out.Manifest = manifest.PathFor(out.Image, req.Manifest)
		if err := m.WriteFile(out.Manifest); err != nil {
			return nil, err
		}
		logger.LogDebug("wrote manifest", map[string]interface{}{"path": out.Manifest})
	}

	return out, nil
}

// ChecksumFile computes the checksum report of a file, plus any extra
// digests requested by algorithm name.
func ChecksumFile(ctx context.Context, path string, r checksum.Range, d checksum.Digester, extra ...cryptoutil.HashAlgorithm) (*checksum.Report, map[cryptoutil.HashAlgorithm]string, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	report, err := checksum.Compute(ctx, bytebuf.Wrap(path, data), r, d)
	if err != nil {
		return nil, nil, err
	}

	digests := make(map[cryptoutil.HashAlgorithm]string, len(extra))
	for _, alg := range extra {
		sum, err := cryptoutil.CalculateFileChecksum(path, alg)
		if err != nil {
			return nil, nil, err
		}
		digests[alg] = sum
	}
	return report, digests, nil
}

// VerifyFile checks a file against an "algorithm:hex" digest and returns
// the algorithm used. A mismatch fails with ErrChecksumMismatch.
func VerifyFile(path, expected string) (cryptoutil.HashAlgorithm, error) {
	want, alg := cryptoutil.ParseHashWithAlgorithm(strings.TrimSpace(expected))
	if alg == "" {
		return "", fmt.Errorf("%w: %q needs an algorithm prefix such as sha256:", commonerrors.ErrInvalidArgument, expected)
	}
	hasher, err := cryptoutil.NewHasher(alg)
	if err != nil {
		return "", err
	}
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return "", err
	}

	ok, err := hasher.Verify(data, want)
	if err != nil {
		return "", err
	}
	if !ok {
		got, _ := hasher.Hash(data)
		return alg, commonerrors.NewOpError(commonerrors.ErrChecksumMismatch, "Verify", path,
			fmt.Sprintf("%s is %s, want %s", alg, got, want))
	}
	logger.LogInfo("checksum verified", map[string]interface{}{"path": path, "algorithm": string(alg)})
	return alg, nil
}

// ArchiveFile compresses path next to itself and returns the archive path
func ArchiveFile(path string, f compression.Format) (string, error) {
	if f == compression.FormatNone {
		return "", fmt.Errorf("%w: no archive format", commonerrors.ErrInvalidArgument)
	}
	dst := path + f.Ext()
	if err := compression.CompressFile(f, path, dst); err != nil {
		return "", err
	}
	logger.LogInfo("archived image", map[string]interface{}{"path": dst, "format": f.String()})
	return dst, nil
}

// readImage loads an image, transparently unpacking an archive
func readImage(path string) ([]byte, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if compression.DetectFormat(data) != compression.FormatNone {
		return compression.Decompress(data)
	}
	return data, nil
}

// InspectFile decodes an image file, which may be archived
func InspectFile(path string, chunkSize int) (*picocart.ImageInfo, error) {
	data, err := readImage(path)
	if err != nil {
		return nil, err
	}
	return picocart.Inspect(data, chunkSize)
}

// ExtractRequest describes an image to turn back into a ROM
type ExtractRequest struct {
	Input  string
	Output string

	// ChunkSize and RomSize override what the manifest says; 0 means unknown
	ChunkSize int
	RomSize   int

	// Manifest is an optional manifest path
	Manifest string
}

// ExtractFile rebuilds the ROM carried by an image file
func ExtractFile(req ExtractRequest) (string, error) {
	if req.Manifest != "" {
		m, err := manifest.ReadFile(req.Manifest)
		if err != nil {
			return "", err
		}
		if req.ChunkSize == 0 {
			req.ChunkSize = m.ChunkSize
		}
		if req.RomSize == 0 {
			req.RomSize = m.RomSize - m.DroppedBytes
		}
	}

	data, err := readImage(req.Input)
	if err != nil {
		return "", err
	}
	rom, info, err := picocart.Extract(data, req.ChunkSize, req.RomSize)
	if err != nil {
		return "", err
	}
	if req.RomSize == 0 && info.Compressed {
		logger.LogWarn("ROM size unknown, estimated from the last non-zero mapping entry; trailing chunks may be missing", map[string]interface{}{
			"image": req.Input,
			"bytes": len(rom),
			"hint":  "pass --rom-size or the build manifest",
		})
	}

	output := req.Output
	if output == "" {
		output = fsutil.ReplaceExt(compression.TrimExt(req.Input), ".extracted.z64")
	}
	if err := fsutil.WriteFile(output, rom, 0644); err != nil {
		return "", err
	}
	logger.LogInfo("extracted ROM", map[string]interface{}{
		"path":       output,
		"bytes":      len(rom),
		"compressed": info.Compressed,
	})
	return output, nil
}
