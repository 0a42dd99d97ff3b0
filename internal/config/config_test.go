package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Backend:  BackendConfig{APIKey: "test-key"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingBackendKey(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing backend api key")
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.Threshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold > 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 3600 {
		t.Errorf("expected WriteTimeoutSec=3600, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Backend.PollIntervalSec != 5 {
		t.Errorf("expected PollIntervalSec=5, got %d", cfg.Backend.PollIntervalSec)
	}
	if cfg.Backend.FilePollIntervalMS != 1000 {
		t.Errorf("expected FilePollIntervalMS=1000, got %d", cfg.Backend.FilePollIntervalMS)
	}
	if cfg.Backend.Model != "gemini-2.5-flash" {
		t.Errorf("expected default model, got %q", cfg.Backend.Model)
	}
	if cfg.Classifier.Threshold != 0.4 {
		t.Errorf("expected Threshold=0.4, got %f", cfg.Classifier.Threshold)
	}
	if cfg.Storage.KeyPrefix != "toxgate:" {
		t.Errorf("expected KeyPrefix=toxgate:, got %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	if err := os.Setenv("TOXGATE_TEST_KEY", "secret"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Unsetenv("TOXGATE_TEST_KEY") }()

	in := []byte("api_key: ${TOXGATE_TEST_KEY}\nmodel: ${TOXGATE_TEST_MODEL:-gemini-2.5-flash}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: gemini-2.5-flash\n"
	if out != want {
		t.Errorf("env expansion mismatch:\ngot:  %q\nwant: %q", out, want)
	}
}
