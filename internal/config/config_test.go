package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	compression "github.com/deploymenttheory/go-rom-uf2/internal/common/compressionutil"
	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/dedup"
	"github.com/deploymenttheory/go-rom-uf2/internal/manifest"
	"github.com/deploymenttheory/go-rom-uf2/internal/picocart"
)

const testConfig = `
debug: true
log_format: json
log_file: ""
build:
  compress: true
  chunk_size: 4096
  family: "ESP32"
  flash_size: 0x200000
  remainder: truncate
  archive: zstd
  manifest: yaml
`

func TestInitializeFromFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	path := filepath.Join(t.TempDir(), "rom2uf2.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROM2UF2_BUILD_LOAD_ADDRESS", "0x10040000")

	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}
	if !ConfigLoaded || ConfigFile != path {
		t.Errorf("ConfigLoaded = %v, ConfigFile = %q", ConfigLoaded, ConfigFile)
	}
	if !Instance.Debug || Instance.LogFormat != "json" {
		t.Errorf("core settings = %+v", Instance)
	}

	opts, err := BuildOptions()
	if err != nil {
		t.Fatal(err)
	}
	want := picocart.Options{
		Compress:    true,
		ChunkSize:   4096,
		Family:      "ESP32",
		LoadAddress: 0x10040000,
		FlashBase:   picocart.DefaultFlashBase,
		FlashSize:   0x200000,
		Remainder:   dedup.RemainderTruncate,
	}
	if opts != want {
		t.Errorf("BuildOptions() = %+v; want %+v", opts, want)
	}

	if f, err := Instance.Build.ArchiveFormat(); err != nil || f != compression.FormatZstd {
		t.Errorf("ArchiveFormat() = %s, %v", f, err)
	}
	if f, ok, err := Instance.Build.ManifestFormat(); err != nil || !ok || f != manifest.FormatYAML {
		t.Errorf("ManifestFormat() = %q, %v, %v", f, ok, err)
	}

	Viper().Set("build.compress", false)
	if err := Reload(); err != nil || Instance.Build.Compress {
		t.Errorf("Reload did not pick up the override: %v", err)
	}
}

func TestInitializeDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	if Viper() != nil {
		t.Fatal("Viper() is set after Reset")
	}

	if err := Initialize(""); err != nil {
		t.Fatal(err)
	}
	// a second call is a no-op
	if err := Initialize(filepath.Join(t.TempDir(), "ignored.yaml")); err != nil {
		t.Fatal(err)
	}

	opts, err := BuildOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts != picocart.DefaultOptions() {
		t.Errorf("BuildOptions() = %+v; want defaults", opts)
	}
	if _, ok, _ := Instance.Build.ManifestFormat(); ok {
		t.Error("manifests are on by default")
	}
}

func TestReloadBeforeInitialize(t *testing.T) {
	Reset()
	if err := Reload(); !errors.Is(err, commonerrors.ErrConfigInvalid) {
		t.Errorf("got %v; want ErrConfigInvalid", err)
	}
}

func TestBuildConfigOptionsErrors(t *testing.T) {
	base := BuildConfig{
		ChunkSize:   1024,
		Family:      "Raspberry Pi RP2040",
		LoadAddress: picocart.DefaultLoadAddress,
		FlashBase:   picocart.DefaultFlashBase,
		FlashSize:   picocart.DefaultFlashSize,
		Remainder:   "pad",
	}
	if _, err := base.Options(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*BuildConfig)
	}{
		{"remainder", func(b *BuildConfig) { b.Remainder = "discard" }},
		{"family", func(b *BuildConfig) { b.Family = "Amiga" }},
		{"chunk size", func(b *BuildConfig) { b.Compress = true; b.ChunkSize = 3000 }},
		{"flash size", func(b *BuildConfig) { b.FlashSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			tt.modify(&b)
			if _, err := b.Options(); !errors.Is(err, commonerrors.ErrConfigInvalid) {
				t.Errorf("got %v; want ErrConfigInvalid", err)
			}
		})
	}

	if _, err := (BuildConfig{Archive: "rar"}).ArchiveFormat(); !errors.Is(err, commonerrors.ErrConfigInvalid) {
		t.Errorf("ArchiveFormat(rar) = %v", err)
	}
	if _, ok, err := (BuildConfig{}).ManifestFormat(); ok || err != nil {
		t.Errorf("empty manifest: ok=%v err=%v", ok, err)
	}
}
