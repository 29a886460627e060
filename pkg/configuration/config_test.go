package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc"
)

func TestParseSettings(t *testing.T) {
	cfg, err := Parse(strings.NewReader(heredoc.Doc(`
		; comment
		# another comment
		[Server]
		port = 9090
		tick_interval=25ms

		[Session]
		max_inactive_time=120
		cleanup_interval=bogus

		[Debug]
		enable_debug_logging=false
		ratio=0.5
	`)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := cfg.Int("Server", "port", 0); got != 9090 {
		t.Errorf("port = %d, want 9090", got)
	}
	if got := cfg.Duration("Server", "tick_interval", 0); got != 25*time.Millisecond {
		t.Errorf("tick_interval = %v", got)
	}
	if got := cfg.Duration("Session", "max_inactive_time", 0); got != 120*time.Second {
		t.Errorf("plain seconds = %v, want 2m", got)
	}
	if got := cfg.Duration("Session", "cleanup_interval", time.Minute); got != time.Minute {
		t.Errorf("invalid duration should fall back, got %v", got)
	}
	if cfg.Bool("Debug", "enable_debug_logging", true) {
		t.Error("enable_debug_logging should be false")
	}
	if got := cfg.Float("Debug", "ratio", 0); got != 0.5 {
		t.Errorf("ratio = %v", got)
	}
	if got := cfg.String("Missing", "key", "fallback"); got != "fallback" {
		t.Errorf("missing section = %q", got)
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	tests := map[string]string{
		"no equals":       "[Server]\nport 8080\n",
		"outside section": "port=8080\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(src)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file was not written: %v", err)
	}
	if got := cfg.Int("Server", "port", 0); got != 8080 {
		t.Errorf("default port = %d", got)
	}

	cfg.Set("Server", "port", "7070")
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Int("Server", "port", 0); got != 7070 {
		t.Errorf("saved port = %d, want 7070", got)
	}
	if got := reloaded.String("Calculator", "default_program", ""); got != "KEYDEMO" {
		t.Errorf("default_program = %q", got)
	}
}

func TestSectionReturnsCopy(t *testing.T) {
	cfg, err := Parse(strings.NewReader("[Admin]\npassword_hash=x\n"))
	if err != nil {
		t.Fatal(err)
	}
	section := cfg.Section("Admin")
	section["password_hash"] = "changed"
	if got := cfg.String("Admin", "password_hash", ""); got != "x" {
		t.Errorf("Section leaked internal map, value now %q", got)
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	var cfg *Config
	if got := cfg.Int("Server", "port", 42); got != 42 {
		t.Errorf("nil config returned %d", got)
	}
}
