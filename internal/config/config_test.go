// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadClientConfig_Full(t *testing.T) {
	path := writeConfig(t, `
client:
  database: appdata
primary:
  host: 10.0.0.1
  port: 27018
secondary:
  host: 10.0.0.2
timeouts:
  connect_ms: 2000
  op_ms: 8000
retry:
  max_attempts: 3
  initial_delay: 2s
auth:
  user: svc
  password: hunter2
gridfs:
  prefix: blobs
  chunk_size: 128kb
  case_insensitive: true
  compression: zstd
  cache_size: 4mb
logging:
  level: debug
  format: text
  file: /var/log/ndocstore.log
`)

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}

	want := &ClientConfig{
		Client:    ClientInfo{Database: "appdata"},
		Primary:   Endpoint{Host: "10.0.0.1", Port: 27018},
		Secondary: &Endpoint{Host: "10.0.0.2", Port: 27017},
		Timeouts:  TimeoutInfo{ConnectMS: 2000, OpMS: 8000},
		Retry:     RetryInfo{MaxAttempts: 3, InitialDelay: 2 * time.Second},
		Auth:      &AuthInfo{User: "svc", Password: "hunter2"},
		GridFS: GridFSInfo{
			Prefix:          "blobs",
			ChunkSize:       "128kb",
			ChunkSizeRaw:    128 * 1024,
			CaseInsensitive: true,
			Compression:     "zstd",
			CacheSize:       "4mb",
			CacheSizeRaw:    4 * 1024 * 1024,
		},
		Logging: LoggingInfo{Level: "debug", Format: "text", File: "/var/log/ndocstore.log"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := LoadClientConfig(writeConfig(t, `
client:
  database: db
`))
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}

	if cfg.Primary.Host != "127.0.0.1" || cfg.Primary.Port != 27017 {
		t.Errorf("expected default primary, got %+v", cfg.Primary)
	}
	if cfg.Secondary != nil {
		t.Error("expected no secondary by default")
	}
	if cfg.Timeouts.ConnectMS != 10000 || cfg.Timeouts.OpMS != 30000 {
		t.Errorf("expected default timeouts, got %+v", cfg.Timeouts)
	}
	if cfg.Timeouts.Connect() != 10*time.Second || cfg.Timeouts.Op() != 30*time.Second {
		t.Error("duration accessors disagree with millisecond fields")
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialDelay != time.Second {
		t.Errorf("expected default retry, got %+v", cfg.Retry)
	}
	if cfg.GridFS.Prefix != "fs" || cfg.GridFS.ChunkSizeRaw != 256*1024 {
		t.Errorf("expected default gridfs, got %+v", cfg.GridFS)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("expected default logging, got %+v", cfg.Logging)
	}
}

func TestLoadClientConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			"missing database",
			"primary:\n  host: x\n",
			"client.database is required",
		},
		{
			"secondary without host",
			"client:\n  database: db\nsecondary:\n  port: 27017\n",
			"secondary.host is required",
		},
		{
			"auth without password",
			"client:\n  database: db\nauth:\n  user: u\n",
			"auth.password is required",
		},
		{
			"invalid primary port",
			"client:\n  database: db\nprimary:\n  host: x\n  port: 70000\n",
			"primary.port must be between",
		},
		{
			"chunk size too small",
			"client:\n  database: db\ngridfs:\n  chunk_size: 1kb\n",
			"chunk_size must be at least",
		},
		{
			"chunk size too large",
			"client:\n  database: db\ngridfs:\n  chunk_size: 64mb\n",
			"chunk_size must be at most",
		},
		{
			"unknown compression",
			"client:\n  database: db\ngridfs:\n  compression: lz4\n",
			"compression must be empty, zstd or gzip",
		},
		{
			"bad cache size",
			"client:\n  database: db\ngridfs:\n  cache_size: many\n",
			"cache_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadClientConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestLoadClientConfig_MissingFile(t *testing.T) {
	if _, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"256kb", 256 * 1024, false},
		{"1mb", 1024 * 1024, false},
		{"2gb", 2 * 1024 * 1024 * 1024, false},
		{"512b", 512, false},
		{"1024", 1024, false},
		{" 8MB ", 8 * 1024 * 1024, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12tb", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
