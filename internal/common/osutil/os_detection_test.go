package osutil

import (
	"runtime"
	"testing"
)

func TestIsDevEnvironment(t *testing.T) {
	tests := []struct {
		key, value string
		expected   bool
	}{
		{"ROM2UF2_ENV", "development", true},
		{"ROM2UF2_DEV", "true", true},
		{"ROM2UF2_ENV", "production", false},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("ROM2UF2_ENV", "")
			t.Setenv("ROM2UF2_DEV", "")
			t.Setenv("DEV", "")
			t.Setenv(tt.key, tt.value)
			if got := IsDevEnvironment(); got != tt.expected {
				t.Errorf("IsDevEnvironment() = %v; want %v", got, tt.expected)
			}
		})
	}
}

func TestIsRunningInPipeline(t *testing.T) {
	for _, key := range []string{"CI", "PIPELINE", "GITHUB_ACTIONS", "JENKINS_URL"} {
		t.Setenv(key, "")
	}
	if IsRunningInPipeline() {
		t.Fatal("pipeline detected with no CI variables set")
	}
	t.Setenv("GITHUB_ACTIONS", "true")
	if !IsRunningInPipeline() {
		t.Error("GITHUB_ACTIONS=true not detected")
	}
}

func TestOSType(t *testing.T) {
	if GetOSType() != runtime.GOOS {
		t.Errorf("GetOSType() = %q; want %q", GetOSType(), runtime.GOOS)
	}
	if IsWindows() != (runtime.GOOS == Windows) {
		t.Errorf("IsWindows() = %v on %s", IsWindows(), runtime.GOOS)
	}
	if IsMacOS() != (runtime.GOOS == MacOS) {
		t.Errorf("IsMacOS() = %v on %s", IsMacOS(), runtime.GOOS)
	}
	if IsWindows() && IsMacOS() {
		t.Error("both Windows and macOS detected")
	}
}
