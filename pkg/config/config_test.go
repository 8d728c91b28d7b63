package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
datasets:
  tracks:
    path: /data/mcs_tracks.strk
  mask:
    path: /data/mcs_mask
    variable: cloudtracknumber
matching:
  nearest-tolerance: 30m
storage:
  timescaledb:
    connection-string: postgres://stormtrack@localhost/stormtrack
server:
  port: 9090
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestYAMLProvider(t *testing.T) {
	p := NewYAMLProvider(writeFile(t, sampleYAML))
	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Datasets.Tracks.Format != FormatTrackFile || cfg.Datasets.Mask.Format != FormatChunkStore {
		t.Errorf("formats not defaulted: %+v", cfg.Datasets)
	}
	if cfg.Datasets.Mask.Variable != "cloudtracknumber" {
		t.Errorf("mask variable = %q", cfg.Datasets.Mask.Variable)
	}
	if tol, _ := cfg.Matching.Tolerance(); tol != 30*time.Minute {
		t.Errorf("tolerance = %s, expected 30m", tol)
	}
	if cfg.Server.Port != 9090 || cfg.Server.ListenAddr != "0.0.0.0" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.TimescaleDB == nil || !strings.HasPrefix(cfg.Storage.TimescaleDB.ConnectionString, "postgres://") {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errSub string
	}{
		{"missing tracks", "datasets:\n  mask:\n    path: /m\n", "tracks.path"},
		{"missing mask", "datasets:\n  tracks:\n    path: /t\n", "mask.path"},
		{"bad format", "datasets:\n  tracks:\n    path: /t\n    format: netcdf\n  mask:\n    path: /m\n", "format"},
		{"mask as track file", "datasets:\n  tracks:\n    path: /t\n  mask:\n    path: /m\n    format: trackfile\n", "mask.format"},
		{"bad tolerance", "datasets:\n  tracks:\n    path: /t\n  mask:\n    path: /m\nmatching:\n  nearest-tolerance: soon\n", "nearest_tolerance"},
		{"cert without key", "datasets:\n  tracks:\n    path: /t\n  mask:\n    path: /m\nserver:\n  cert: /c.pem\n", "cert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYAMLProvider(writeFile(t, tt.yaml)).LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("LoadConfig error = %v, expected mention of %q", err, tt.errSub)
			}
		})
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	src, err := NewYAMLProvider(writeFile(t, sampleYAML)).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	if err := p.SaveConfig(src); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got.Datasets != src.Datasets {
		t.Errorf("datasets = %+v, expected %+v", got.Datasets, src.Datasets)
	}
	if got.Matching != src.Matching || got.Server != src.Server {
		t.Errorf("settings = %+v %+v, expected %+v %+v", got.Matching, got.Server, src.Matching, src.Server)
	}
	if got.Storage.TimescaleDB == nil || *got.Storage.TimescaleDB != *src.Storage.TimescaleDB {
		t.Errorf("storage = %+v", got.Storage.TimescaleDB)
	}
	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}
}

func TestSQLiteProviderEmpty(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	if _, err := p.LoadConfig(); err == nil {
		t.Error("expected validation error for an empty configuration")
	}
	storage, err := p.GetStorageConfig()
	if err != nil {
		t.Fatalf("GetStorageConfig: %v", err)
	}
	if storage.TimescaleDB != nil {
		t.Error("no timescaledb setting should mean nil TimescaleDB")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg, err := NewYAMLProvider(writeFile(t, sampleYAML)).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	err = cfg.ApplyEnv(map[string]string{
		"STORMTRACK_MASK_PATH":   "/scratch/mask",
		"STORMTRACK_SERVER_PORT": "9191",
		"UNRELATED":              "ignored",
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Datasets.Mask.Path != "/scratch/mask" || cfg.Server.Port != 9191 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Datasets.Mask, cfg.Server)
	}
	if cfg.Datasets.Tracks.Path != "/data/mcs_tracks.strk" {
		t.Errorf("unset override changed tracks path to %q", cfg.Datasets.Tracks.Path)
	}

	if err := cfg.ApplyEnv(map[string]string{"STORMTRACK_SERVER_PORT": "http"}); err == nil {
		t.Error("expected parse error for a non-numeric port")
	}
	if err := cfg.ApplyEnv(map[string]string{"STORMTRACK_MASK_FORMAT": "zarr"}); err == nil {
		t.Error("expected validation error for an unknown format")
	}
}
