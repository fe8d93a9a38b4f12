package composition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-rom-uf2/internal/checksum"
	compression "github.com/deploymenttheory/go-rom-uf2/internal/common/compressionutil"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/cryptoutil"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/logger"
	"github.com/deploymenttheory/go-rom-uf2/internal/manifest"
)

// StepHandler executes a workflow step whose parameters are already rendered
type StepHandler func(ctx context.Context, step Step) (map[string]interface{}, error)

// stepType couples a handler with the parameters it cannot do without
type stepType struct {
	handler  StepHandler
	required []string
}

func createStepHandlerRegistry() map[string]stepType {
	return map[string]stepType{
		"build":    {handleBuildStep, []string{"input"}},
		"checksum": {handleChecksumStep, []string{"input"}},
		"archive":  {handleArchiveStep, []string{"input", "format"}},
		"inspect":  {handleInspectStep, []string{"input"}},
		"extract":  {handleExtractStep, []string{"input"}},
	}
}

// evaluateCondition renders a condition template and reads it as a boolean
func evaluateCondition(condition string, variables map[string]interface{}) (bool, error) {
	result, err := processTemplate(condition, variables)
	if err != nil {
		return false, err
	}

	result = strings.TrimSpace(strings.ToLower(result))
	return result == "true" || result == "yes" || result == "1", nil
}

// ---- parameter helpers ----

func stringParam(step Step, name string) (string, bool, error) {
	raw, ok := step.Parameters[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	case int, int64, uint32, uint64, float64, bool:
		return fmt.Sprint(v), true, nil
	}
	return "", false, paramError(step, name, raw, "a string")
}

func boolParam(step Step, name string) (bool, bool, error) {
	raw, ok := step.Parameters[name]
	if !ok || raw == nil {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false, paramError(step, name, raw, "a boolean")
		}
		return b, true, nil
	}
	return false, false, paramError(step, name, raw, "a boolean")
}

// intParam accepts YAML numbers and strings in any Go integer syntax, so
// addresses can be written as 0x10030000.
func intParam(step Step, name string) (int64, bool, error) {
	raw, ok := step.Parameters[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case uint64:
		return int64(v), true, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, false, paramError(step, name, raw, "an integer")
		}
		return int64(v), true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return 0, false, paramError(step, name, raw, "an integer")
		}
		return n, true, nil
	}
	return 0, false, paramError(step, name, raw, "an integer")
}

func uint32Param(step Step, name string, dst *uint32) error {
	n, ok, err := intParam(step, name)
	if err != nil || !ok {
		return err
	}
	if n < 0 || n > 0xFFFFFFFF {
		return paramError(step, name, n, "a 32-bit unsigned value")
	}
	*dst = uint32(n)
	return nil
}

func paramError(step Step, name string, value interface{}, want string) error {
	return fmt.Errorf("%w: step %s: parameter %s=%v is not %s",
		commonerrors.ErrInvalidArgument, step.Name, name, value, want)
}

// ---- build step ----

func handleBuildStep(ctx context.Context, step Step) (map[string]interface{}, error) {
	input, _, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}
	req, err := NewBuildRequest(input)
	if err != nil {
		return nil, err
	}

	if req.Output, _, err = stringParam(step, "output"); err != nil {
		return nil, err
	}
	if dir, ok, err := stringParam(step, "output_dir"); err != nil {
		return nil, err
	} else if ok {
		req.OutputDir = dir
	}
	if v, ok, err := boolParam(step, "compress"); err != nil {
		return nil, err
	} else if ok {
		req.Options.Compress = v
	}
	if v, ok, err := intParam(step, "chunk_size"); err != nil {
		return nil, err
	} else if ok {
		req.Options.ChunkSize = int(v)
	}
	if v, ok, err := stringParam(step, "family"); err != nil {
		return nil, err
	} else if ok {
		req.Options.Family = v
	}
	if err := uint32Param(step, "load_address", &req.Options.LoadAddress); err != nil {
		return nil, err
	}
	if err := uint32Param(step, "flash_size", &req.Options.FlashSize); err != nil {
		return nil, err
	}
	if v, ok, err := stringParam(step, "remainder"); err != nil {
		return nil, err
	} else if ok {
		if req.Options.Remainder, err = dedup.ParseRemainderPolicy(v); err != nil {
			return nil, err
		}
	}
	if v, ok, err := boolParam(step, "strict_flash"); err != nil {
		return nil, err
	} else if ok {
		req.Options.StrictFlash = v
	}
	if v, ok, err := stringParam(step, "archive"); err != nil {
		return nil, err
	} else if ok {
		if req.Archive, err = compression.ParseFormat(v); err != nil {
			return nil, err
		}
	}
	if v, ok, err := stringParam(step, "manifest"); err != nil {
		return nil, err
	} else if ok {
		if v == "" || v == "none" {
			req.WriteManifest = false
		} else {
			if req.Manifest, err = manifest.ParseFormat(v); err != nil {
				return nil, err
			}
			req.WriteManifest = true
		}
	}

	out, err := BuildFile(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, w := range out.Result.Warnings {
		logger.LogWarn(fmt.Sprintf("step %s: %v", step.Name, w), nil)
	}

	s := out.Result.Stats
	return map[string]interface{}{
		"image":         out.Image,
		"archive":       out.Archive,
		"manifest":      out.Manifest,
		"blocks":        s.Blocks,
		"unique_chunks": s.UniqueChunks,
		"chunk_size":    s.ChunkSize,
		"rom_size":      s.RomSize,
		"warnings":      len(out.Result.Warnings),
	}, nil
}

// ---- checksum step ----

func handleChecksumStep(ctx context.Context, step Step) (map[string]interface{}, error) {
	input, _, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}

	var r checksum.Range
	if v, ok, err := intParam(step, "header_size"); err != nil {
		return nil, err
	} else if ok {
		r.HeaderSize = int(v)
	}
	if r.IgnoreLast4Bytes, _, err = boolParam(step, "ignore_last4"); err != nil {
		return nil, err
	}

	var extra []cryptoutil.HashAlgorithm
	if list, ok, err := stringParam(step, "hashes"); err != nil {
		return nil, err
	} else if ok {
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				extra = append(extra, cryptoutil.HashAlgorithm(strings.ToLower(name)))
			}
		}
	}

	report, digests, err := ChecksumFile(ctx, input, r, checksum.SHA1Digester, extra...)
	if err != nil {
		return nil, err
	}
	if report.SHA1Err != nil {
		logger.LogWarn("SHA-1 unavailable", map[string]interface{}{"step": step.Name, "error": report.SHA1Err.Error()})
	}

	result := map[string]interface{}{
		"crc32": report.CRC32,
		"md5":   report.MD5,
		"sha1":  report.SHA1,
	}
	for alg, sum := range digests {
		result[strings.ReplaceAll(string(alg), "-", "_")] = sum
	}

	if expected, ok, err := stringParam(step, "verify"); err != nil {
		return nil, err
	} else if ok {
		if _, err := VerifyFile(input, expected); err != nil {
			return nil, err
		}
		result["verified"] = true
	}
	logger.LogInfo("checksums", result)
	return result, nil
}

// ---- archive step ----

func handleArchiveStep(ctx context.Context, step Step) (map[string]interface{}, error) {
	input, _, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}
	name, _, err := stringParam(step, "format")
	if err != nil {
		return nil, err
	}
	format, err := compression.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	archive, err := ArchiveFile(input, format)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"archive": archive}, nil
}

// ---- inspect step ----

func handleInspectStep(ctx context.Context, step Step) (map[string]interface{}, error) {
	input, _, err := stringParam(step, "input")
	if err != nil {
		return nil, err
	}
	chunkSize, _, err := intParam(step, "chunk_size")
	if err != nil {
		return nil, err
	}

	info, err := InspectFile(input, int(chunkSize))
	if err != nil {
		return nil, err
	}
	result := map[string]interface{}{
		"tag":             info.Tag,
		"compressed":      info.Compressed,
		"blocks":          info.Blocks,
		"family":          info.FamilyName,
		"load_address":    fmt.Sprintf("0x%08x", info.LoadAddress),
		"payload_size":    info.PayloadSize,
		"mapping_entries": info.MappingEntries,
		"unique_chunks":   info.UniqueChunks,
	}
	logger.LogInfo("image", result)
	return result, nil
}

// ---- extract step ----

func handleExtractStep(ctx context.Context, step Step) (map[string]interface{}, error) {
	var req ExtractRequest
	var err error

	if req.Input, _, err = stringParam(step, "input"); err != nil {
		return nil, err
	}
	if req.Output, _, err = stringParam(step, "output"); err != nil {
		return nil, err
	}
	if req.Manifest, _, err = stringParam(step, "manifest"); err != nil {
		return nil, err
	}
	chunkSize, _, err := intParam(step, "chunk_size")
	if err != nil {
		return nil, err
	}
	romSize, _, err := intParam(step, "rom_size")
	if err != nil {
		return nil, err
	}
	req.ChunkSize, req.RomSize = int(chunkSize), int(romSize)

	rom, err := ExtractFile(req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"rom": rom}, nil
}
