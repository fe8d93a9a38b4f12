package manifest

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-rom-uf2/internal/bytebuf"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
)

func buildManifest(t *testing.T) *Manifest {
	t.Helper()
	opts := picocart.DefaultOptions()
	opts.Compress = true
	result, err := picocart.Build(context.Background(), bytebuf.FromBytes("zero.z64", make([]byte, 4096+7)), opts)
	if err != nil {
		t.Fatal(err)
	}
	return FromResult(result, Checksums{CRC32: "0badc0de", MD5: "d41d8cd98f00b204e9800998ecf8427e"})
}

func TestFromResult(t *testing.T) {
	m := buildManifest(t)

	if m.Rom != "zero.z64" || m.Image != "zero.uf2" || m.RomSize != 4103 {
		t.Errorf("names/size = %q %q %d", m.Rom, m.Image, m.RomSize)
	}
	if m.Family != "Raspberry Pi RP2040" || m.FamilyID != "0xe48bff56" || m.LoadAddress != "0x10030000" {
		t.Errorf("family/address = %q %q %q", m.Family, m.FamilyID, m.LoadAddress)
	}
	if !m.Compressed || m.Chunks != 5 || m.UniqueChunks != 1 || m.ChunkSize != 1024 {
		t.Errorf("dedup stats = %v %d %d %d", m.Compressed, m.Chunks, m.UniqueChunks, m.ChunkSize)
	}
	if len(m.Warnings) != 1 {
		t.Errorf("warnings = %v; want the byte order warning", m.Warnings)
	}
}

func TestRoundTripAllFormats(t *testing.T) {
	m := buildManifest(t)
	dir := t.TempDir()

	for _, format := range []Format{FormatYAML, FormatJSON, FormatPlist} {
		t.Run(string(format), func(t *testing.T) {
			path := PathFor(filepath.Join(dir, "zero.uf2"), format)
			if !strings.HasSuffix(path, "zero.manifest."+string(format)) {
				t.Errorf("PathFor = %q", path)
			}
			if err := m.WriteFile(path); err != nil {
				t.Fatal(err)
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.RomSize != m.RomSize || got.ChunkSize != m.ChunkSize || got.Blocks != m.Blocks {
				t.Errorf("sizes = %d/%d/%d; want %d/%d/%d",
					got.RomSize, got.ChunkSize, got.Blocks, m.RomSize, m.ChunkSize, m.Blocks)
			}
			if got.RomChecksums != m.RomChecksums {
				t.Errorf("checksums = %+v; want %+v", got.RomChecksums, m.RomChecksums)
			}
			if !got.Created.Equal(m.Created) {
				t.Errorf("created = %v; want %v", got.Created, m.Created)
			}
		})
	}
}

func TestEncodeYAMLKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := buildManifest(t).Encode(&buf, FormatYAML); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"rom_size: 4103", "compressed: true", "family: Raspberry Pi RP2040", "rom_checksums:"} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("YAML output missing %q:\n%s", key, buf.String())
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		ok       bool
	}{
		{"yaml", FormatYAML, true},
		{"YML", FormatYAML, true},
		{"json", FormatJSON, true},
		{"plist", FormatPlist, true},
		{"toml", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err == nil) != tt.ok || got != tt.expected {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.input, got, err)
		}
	}
	if _, err := FormatFromPath("image.manifest.txt"); !errors.Is(err, commonerrors.ErrInvalidArgument) {
		t.Errorf("FormatFromPath(.txt) = %v", err)
	}
}
