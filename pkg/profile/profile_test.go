package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltin(t *testing.T) {
	desktop, ok := Builtin("desktop")
	if !ok {
		t.Fatal("expected desktop builtin")
	}
	if desktop.Width != 1440 || desktop.Height != 900 {
		t.Errorf("unexpected desktop viewport: %dx%d", desktop.Width, desktop.Height)
	}
	if desktop.Mobile {
		t.Error("desktop must not be mobile")
	}

	mobile, _ := Builtin("mobile")
	if mobile.Width != 390 || mobile.Height != 844 {
		t.Errorf("unexpected mobile viewport: %dx%d", mobile.Width, mobile.Height)
	}
	if !mobile.Mobile {
		t.Error("mobile must set the mobile flag")
	}

	bot, _ := Builtin("bot")
	if bot.UserAgent == "" {
		t.Error("bot must carry a crawler user agent")
	}

	if _, ok := Builtin("tablet"); ok {
		t.Error("did not expect a tablet builtin")
	}
}

func TestResolve_Defaults(t *testing.T) {
	profiles, err := Resolve(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "desktop" {
		t.Errorf("expected desktop default, got %v", profiles)
	}
}

func TestResolve_ConfigDefaults(t *testing.T) {
	cfg := &Config{Devices: []string{"mobile", "bot"}}
	profiles, err := Resolve(nil, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 2 || profiles[0].Name != "mobile" || profiles[1].Name != "bot" {
		t.Errorf("unexpected profiles: %v", profiles)
	}
}

func TestResolve_CustomShadowsBuiltin(t *testing.T) {
	cfg := &Config{
		Profiles: map[string]ProfileSpec{
			"desktop": {Width: 1920, Height: 1080},
		},
	}
	profiles, err := Resolve([]string{"desktop"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles[0].Width != 1920 {
		t.Errorf("expected custom profile to shadow builtin, got width=%d", profiles[0].Width)
	}
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve([]string{"fridge"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestResolve_InvalidCustom(t *testing.T) {
	cfg := &Config{
		Profiles: map[string]ProfileSpec{"bad": {Width: 0, Height: 500}},
	}
	_, err := Resolve([]string{"bad"}, cfg)
	if err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	yaml := `
devices: [mobile]
profiles:
  kiosk:
    width: 1080
    height: 1920
vars:
  BASE_URL: https://staging.example.com
timeoutMs: 15000
`
	if err := os.WriteFile(filepath.Join(dir, "qscript.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0] != "mobile" {
		t.Errorf("unexpected devices: %v", cfg.Devices)
	}
	if cfg.Profiles["kiosk"].Height != 1920 {
		t.Errorf("unexpected kiosk profile: %+v", cfg.Profiles["kiosk"])
	}
	if cfg.Vars["BASE_URL"] != "https://staging.example.com" {
		t.Errorf("unexpected vars: %v", cfg.Vars)
	}
	if cfg.TimeoutMs != 15000 {
		t.Errorf("unexpected timeout: %d", cfg.TimeoutMs)
	}
}

func TestLoadFromDir_Missing(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Devices) != 0 {
		t.Errorf("expected empty config, got %v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("QSCRIPT_DOTENV_PROBE=hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("QSCRIPT_DOTENV_PROBE") })

	if err := LoadDotEnv(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if os.Getenv("QSCRIPT_DOTENV_PROBE") != "hello" {
		t.Error("expected .env variable in process environment")
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	if err := LoadDotEnv(t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
