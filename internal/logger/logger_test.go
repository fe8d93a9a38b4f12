package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	LogInfo("no panic before InitLogger", map[string]interface{}{"k": 1})
	LogError("no panic with nil error", nil, nil)
}

func TestLogFunctionsAttachFields(t *testing.T) {
	logs := observe(t)

	LogWarn("flash overflow", map[string]interface{}{"end": "0x11000000", "blocks": 9000})
	LogError("build failed", errors.New("boom"), nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	warn := entries[0].ContextMap()
	if warn["blocks"] != int64(9000) || warn["end"] != "0x11000000" {
		t.Errorf("warn fields = %v", warn)
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Errorf("error fields = %v", entries[1].ContextMap())
	}
}

func TestFlattenFieldsIsSorted(t *testing.T) {
	flat := flattenFields(map[string]interface{}{"b": 2, "a": 1})
	if len(flat) != 4 || flat[0] != "a" || flat[2] != "b" {
		t.Errorf("flattenFields = %v", flat)
	}
}

func TestInitLoggerWithFile(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.Debug = true
	cfg.LogFile = t.TempDir() + "/logs/rom2uf2.log"
	if err := InitLogger(cfg); err != nil {
		t.Fatal(err)
	}
	LogDebug("debug enabled", nil)
	_ = Sync()
}
