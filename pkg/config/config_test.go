package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Extra string `yaml:"extra"`
}

var errBadPort = errors.New("bad port")

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errBadPort
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadIfExists_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\nport: 9000\n")

	cfg := sample{Extra: "default"}
	if _, err := LoadIfExists(p, &cfg); err != nil {
		t.Fatalf("LoadIfExists: %v", err)
	}
	if cfg.Name != "from-env" || cfg.Port != 9000 || cfg.Extra != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(&sample{Port: 0}); !errors.Is(err, errBadPort) {
		t.Errorf("err = %v, want errBadPort", err)
	}
	if err := Validate(&sample{Port: 1}); err != nil {
		t.Errorf("valid config: %v", err)
	}
	if err := Validate(&struct{}{}); err != nil {
		t.Errorf("type without Validate: %v", err)
	}
}

func TestDecode_OverridesOnlyPresentFields(t *testing.T) {
	cfg := sample{Name: "keep", Port: 1}
	if err := Decode([]byte("port: 2\n"), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Name != "keep" || cfg.Port != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadIfExists(t *testing.T) {
	var cfg sample
	found, err := LoadIfExists(filepath.Join(t.TempDir(), "none.yaml"), &cfg)
	if found || err != nil {
		t.Errorf("missing file: found=%v err=%v", found, err)
	}

	p := writeConfig(t, "port: 0\nname: x\n")
	found, err = LoadIfExists(p, &cfg)
	if !found || err != nil {
		t.Errorf("existing file: found=%v err=%v", found, err)
	}
	if cfg.Name != "x" {
		t.Errorf("cfg = %+v", cfg)
	}

	bad := writeConfig(t, "port: [unterminated\n")
	if _, err := LoadIfExists(bad, &cfg); err == nil {
		t.Error("expected parse error")
	}
}
