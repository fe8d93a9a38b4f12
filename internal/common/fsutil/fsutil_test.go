package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
	"github.com/deploymenttheory/go-rom-uf2/internal/common/osutil"
)

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "rom.uf2")
	if err := WriteFile(path, []byte("uf2"), 0644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Fatalf("%s does not exist after WriteFile", path)
	}
	data, err := ReadFile(path)
	if err != nil || string(data) != "uf2" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if FileExists(filepath.Dir(path)) {
		t.Error("FileExists reported a directory")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.z64"))
	if !errors.Is(err, commonerrors.ErrFileNotFound) {
		t.Errorf("got %v; want ErrFileNotFound", err)
	}
}

func TestCreateDirIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	for i := 0; i < 2; i++ {
		if err := CreateDirIfNotExists(dir); err != nil {
			t.Fatal(err)
		}
	}
	if !DirExists(dir) {
		t.Error("directory not created")
	}
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path, expected string
	}{
		{"game.z64", "game.uf2"},
		{"dir/game.v1.n64", "dir/game.v1.uf2"},
		{"game", "game.uf2"},
		{".hidden", ".hidden.uf2"},
		{"dir.d/game", "dir.d/game.uf2"},
	}
	for _, tt := range tests {
		if got := ReplaceExt(tt.path, ".uf2"); got != tt.expected {
			t.Errorf("ReplaceExt(%q) = %q; want %q", tt.path, got, tt.expected)
		}
	}
}

func TestLocationsInDevMode(t *testing.T) {
	t.Setenv("ROM2UF2_ENV", "development")
	if dir, _ := GetConfigDir("rom2uf2"); dir != "config" {
		t.Errorf("GetConfigDir = %q; want config", dir)
	}
	if dir, _ := GetLogDir("rom2uf2"); dir != "logs" {
		t.Errorf("GetLogDir = %q; want logs", dir)
	}
}

func TestLocationsPerOS(t *testing.T) {
	t.Setenv("ROM2UF2_ENV", "")
	t.Setenv("ROM2UF2_DEV", "")
	t.Setenv("DEV", "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := GetConfigDir("rom2uf2")
	if err != nil {
		t.Fatal(err)
	}
	var want string
	switch {
	case osutil.IsWindows():
		want = "rom2uf2"
	case osutil.IsMacOS():
		want = filepath.Join("Library", "Application Support", "rom2uf2")
	default:
		want = filepath.Join(xdg, "rom2uf2")
	}
	if filepath.Base(want) != filepath.Base(dir) || !strings.HasSuffix(dir, want) {
		t.Errorf("GetConfigDir = %q; want suffix %q", dir, want)
	}
}
