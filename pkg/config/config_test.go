package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name  string        `yaml:"name"`
	Delay time.Duration `yaml:"delay"`
	Port  int           `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "preview")
	p := writeFile(t, "name: ${SAMPLE_NAME}\ndelay: 300ms\nport: 8080\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "preview" || s.Delay != 300*time.Millisecond || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	p := writeFile(t, "name: x\n")
	s := sample{Port: 9000, Delay: time.Second}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9000 || s.Delay != time.Second {
		t.Errorf("defaults overwritten: %+v", s)
	}
}

func TestLoadValidates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	s := sample{Port: 1}
	if err := LoadOptional(missing, &s); err != nil {
		t.Fatalf("missing file with valid defaults: %v", err)
	}
	var bad sample
	if err := LoadOptional(missing, &bad); err == nil {
		t.Fatal("invalid defaults should fail validation")
	}

	p := writeFile(t, "port: 7\n")
	if err := LoadOptional(p, &s); err != nil || s.Port != 7 {
		t.Fatalf("existing file: %+v, %v", s, err)
	}
}
