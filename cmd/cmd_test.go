package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/config"
	"github.com/deploymenttheory/go-rom-uf2/internal/uf2"
)

// run executes the CLI with args and returns what it printed
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-file="))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeROM(t *testing.T, dir string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i / 1024) % 3)
	}
	copy(data, []byte{0x80, 0x37, 0x12, 0x40})
	path := filepath.Join(dir, "game.z64")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestHexUint32(t *testing.T) {
	var v uint32
	h := newHexUint32(0x10030000, &v)
	if h.String() != "0x10030000" || h.Type() != "hex32" {
		t.Errorf("String %q Type %q", h.String(), h.Type())
	}

	tests := []struct {
		input   string
		want    uint32
		wantErr bool
	}{
		{"0x10040000", 0x10040000, false},
		{"4096", 4096, false},
		{"0x1000_0000", 0x10000000, false},
		{"0o777", 0o777, false},
		{"0x100000000", 0, true},
		{"-1", 0, true},
		{"flash", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := h.Set(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) error = %v; wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && v != tt.want {
				t.Errorf("Set(%q) = %#x; want %#x", tt.input, v, tt.want)
			}
		})
	}
}

func TestBuildInspectExtract(t *testing.T) {
	dir := t.TempDir()
	romPath, data := writeROM(t, dir, 32*1024)
	outDir := filepath.Join(dir, "out")

	out, err := run(t, "build", romPath,
		"--compress", "--output-dir", outDir, "--manifest", "yaml",
		"--load-address", "0x10040000", "--archive", "none")
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	image := filepath.Join(outDir, "game.uf2")
	if !strings.Contains(out, image) || !strings.Contains(out, "4 unique of 32") {
		t.Errorf("unexpected build output:\n%s", out)
	}

	raw, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	first, err := uf2.DecodeBlock(raw[:512])
	if err != nil {
		t.Fatal(err)
	}
	if first.FlashAddress != 0x10040000 {
		t.Errorf("load address = %#x; want 0x10040000", first.FlashAddress)
	}

	out, err = run(t, "inspect", image)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{`"picocartcompress"`, "compressed: true", "Raspberry Pi RP2040", "0x10040000", "unique:     4 chunks"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output lacks %q:\n%s", want, out)
		}
	}

	if out, err = run(t, "extract", image); err != nil {
		t.Fatalf("extract: %v\n%s", err, out)
	}
	restored, err := os.ReadFile(filepath.Join(outDir, "game.extracted.z64"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, data) {
		t.Error("extracted ROM differs from the original")
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	romPath, _ := writeROM(t, dir, 4096)

	tests := []struct {
		name string
		args []string
	}{
		{"no rom", []string{"build"}},
		{"missing rom", []string{"build", filepath.Join(dir, "none.z64")}},
		{"output with two roms", []string{"build", romPath, romPath, "-o", filepath.Join(dir, "x.uf2")}},
		{"bad load address", []string{"build", romPath, "--load-address", "nowhere"}},
		{"unknown family", []string{"build", romPath, "--family", "Game Boy"}},
		{"bad remainder", []string{"build", romPath, "--remainder", "round"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestChecksumCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digits.bin")
	if err := os.WriteFile(path, []byte("123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "checksum", path, "--hash", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"crc32:  cbf43926",
		"md5:    25f9e794323b453885f5181f1b624d0b",
		"sha1:   f7c3bc1d808e04732adf679965ccc34ca7ae3441",
		"sha256: 15e2b0d3c33891ebb0f1ef609ec419420c20e320ce94c65fbc8c3312448eb225",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	sha256 := "15e2b0d3c33891ebb0f1ef609ec419420c20e320ce94c65fbc8c3312448eb225"
	out, err = run(t, "checksum", path, "--verify", "SHA256:"+strings.ToUpper(sha256))
	if err != nil || !strings.Contains(out, "verify: sha256 OK") {
		t.Errorf("verify matching digest: %v\n%s", err, out)
	}
	if _, err := run(t, "checksum", path, "--verify", "md5:00000000000000000000000000000000"); !errors.Is(err, commonerrors.ErrChecksumMismatch) {
		t.Errorf("verify wrong digest: got %v; want ErrChecksumMismatch", err)
	}
	if _, err := run(t, "checksum", path, "--verify", sha256); !errors.Is(err, commonerrors.ErrInvalidArgument) {
		t.Errorf("verify without algorithm: got %v; want ErrInvalidArgument", err)
	}

	if _, err := run(t, "checksum", path, "--header-size", "20"); err == nil {
		t.Error("header larger than the file should fail")
	}
}

func TestFamiliesCommand(t *testing.T) {
	out, err := run(t, "families")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out, "\n"); lines != 34 {
		t.Errorf("listed %d families; want 34", lines)
	}
	var marked []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "(default)") {
			marked = append(marked, strings.Join(strings.Fields(line), " "))
		}
	}
	if len(marked) != 1 || marked[0] != "0xe48bff56 Raspberry Pi RP2040 (default)" {
		t.Errorf("default family lines = %q", marked)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "rom2uf2 "+Version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestWorkflowFlag(t *testing.T) {
	dir := t.TempDir()
	romPath, _ := writeROM(t, dir, 8192)
	wf := filepath.Join(dir, "wf.yaml")
	body := `name: cli
steps:
  - name: build
    type: build
    input: ` + romPath + `
    compress: false
    archive: none
    manifest: none
  - name: look
    type: inspect
    input: "{{.image}}"
`
	if err := os.WriteFile(wf, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	if out, err := run(t, "--workflow", wf); err != nil {
		t.Fatalf("workflow: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "game.uf2")); err != nil {
		t.Error(err)
	}

	if _, err := run(t, "--workflow", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing workflow file should fail")
	}
}
