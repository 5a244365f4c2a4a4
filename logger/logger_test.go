package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wfunc/matchgame/config"
)

func TestInitWritesToFile(t *testing.T) {
	saved := Log
	defer func() { Log = saved }()

	path := filepath.Join(t.TempDir(), "matchgame.log")
	err := Init(config.LogConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Log.Infow("Room created", "code", "ABC123")
	Log.Debugf("Dropped %s", "player_ready")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"Room created"`) || !strings.Contains(out, `"code":"ABC123"`) {
		t.Errorf("Expected structured entry in log file, got %s", out)
	}
	if !strings.Contains(out, "Dropped player_ready") {
		t.Error("Debug entries should be written at debug level")
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	saved := Log
	defer func() { Log = saved }()

	if err := Init(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
