package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("STREAMGATE_TEST_REGION", "eu-west-1")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "region: ${STREAMGATE_TEST_REGION}", "region: eu-west-1"},
		{"unset with default", "region: ${STREAMGATE_TEST_MISSING:-us-east-1}", "region: us-east-1"},
		{"unset without default", "region: ${STREAMGATE_TEST_MISSING}", "region: ${STREAMGATE_TEST_MISSING}"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SubstituteEnvVars(c.input); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	t.Setenv("STREAMGATE_TEST_QSIZE", "512")

	dir := t.TempDir()
	path := filepath.Join(dir, "connector.yaml")
	content := `
connector:
  id: demo
  qsize: ${STREAMGATE_TEST_QSIZE}
  metrics_interval_ns: 1000000
serializer:
  codec: json
  postprocessors: ["length-prefix"]
sink:
  type: stdout
cluster:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connector.ID != "demo" {
		t.Errorf("expected connector id demo, got %q", cfg.Connector.ID)
	}
	if cfg.Sink.Type != "stdout" {
		t.Errorf("expected sink type stdout, got %q", cfg.Sink.Type)
	}
	if len(cfg.Serializer.Postprocessors) != 1 || cfg.Serializer.Postprocessors[0] != "length-prefix" {
		t.Errorf("unexpected postprocessors: %v", cfg.Serializer.Postprocessors)
	}
}

func TestLoadConfigDefaultsQSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connector.yaml")
	if err := os.WriteFile(path, []byte("connector:\n  id: demo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connector.QSize != 256 {
		t.Errorf("expected default qsize 256, got %d", cfg.Connector.QSize)
	}
}
