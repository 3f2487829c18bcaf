// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-DocStore License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config carrega e valida a configuração YAML do cliente.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig representa a configuração completa do cliente n-docstore.
type ClientConfig struct {
	Client    ClientInfo    `yaml:"client"`
	Primary   Endpoint      `yaml:"primary"`
	Secondary *Endpoint     `yaml:"secondary"`
	Timeouts  TimeoutInfo   `yaml:"timeouts"`
	Retry     RetryInfo     `yaml:"retry"`
	Auth      *AuthInfo     `yaml:"auth"`
	GridFS    GridFSInfo    `yaml:"gridfs"`
	Logging   LoggingInfo   `yaml:"logging"`
}

// ClientInfo identifica o database alvo.
type ClientInfo struct {
	Database string `yaml:"database"`
}

// Endpoint descreve um servidor do par primário/secundário.
type Endpoint struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TimeoutInfo contém os timeouts de conexão e de operação, em milissegundos.
type TimeoutInfo struct {
	ConnectMS int `yaml:"connect_ms"`
	OpMS      int `yaml:"op_ms"`
}

// Connect retorna o timeout de conexão como duração.
func (t TimeoutInfo) Connect() time.Duration {
	return time.Duration(t.ConnectMS) * time.Millisecond
}

// Op retorna o timeout de operação como duração.
func (t TimeoutInfo) Op() time.Duration {
	return time.Duration(t.OpMS) * time.Millisecond
}

// RetryInfo contém configurações de retry com exponential backoff para o
// reconnect do par de réplica.
type RetryInfo struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// AuthInfo contém credenciais opcionais de autenticação.
type AuthInfo struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// GridFSInfo configura o store de objetos grandes.
type GridFSInfo struct {
	Prefix          string `yaml:"prefix"`
	ChunkSize       string `yaml:"chunk_size"` // ex: "256kb", "1mb"
	ChunkSizeRaw    int64  `yaml:"-"`          // valor parseado em bytes
	CaseInsensitive bool   `yaml:"case_insensitive"`
	Compression     string `yaml:"compression"` // "", "zstd" ou "gzip"
	CacheSize       string `yaml:"cache_size"`  // ex: "8mb"; vazio desabilita
	CacheSizeRaw    int64  `yaml:"-"`
}

// LoggingInfo contém configurações de logging.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LoadClientConfig lê e valida o arquivo YAML de configuração do cliente.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating client config: %w", err)
	}

	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	if c.Client.Database == "" {
		return fmt.Errorf("client.database is required")
	}
	if c.Primary.Host == "" {
		c.Primary.Host = "127.0.0.1"
	}
	if c.Primary.Port == 0 {
		c.Primary.Port = 27017
	}
	if c.Primary.Port < 1 || c.Primary.Port > 65535 {
		return fmt.Errorf("primary.port must be between 1 and 65535, got %d", c.Primary.Port)
	}
	if c.Secondary != nil {
		if c.Secondary.Host == "" {
			return fmt.Errorf("secondary.host is required when secondary is set")
		}
		if c.Secondary.Port == 0 {
			c.Secondary.Port = 27017
		}
		if c.Secondary.Port < 1 || c.Secondary.Port > 65535 {
			return fmt.Errorf("secondary.port must be between 1 and 65535, got %d", c.Secondary.Port)
		}
	}
	if c.Auth != nil {
		if c.Auth.User == "" {
			return fmt.Errorf("auth.user is required when auth is set")
		}
		if c.Auth.Password == "" {
			return fmt.Errorf("auth.password is required when auth is set")
		}
	}

	if c.Timeouts.ConnectMS <= 0 {
		c.Timeouts.ConnectMS = 10000
	}
	if c.Timeouts.OpMS <= 0 {
		c.Timeouts.OpMS = 30000
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = 1 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.GridFS.Prefix == "" {
		c.GridFS.Prefix = "fs"
	}
	if c.GridFS.ChunkSize == "" {
		c.GridFS.ChunkSize = "256kb"
	}
	parsed, err := ParseByteSize(c.GridFS.ChunkSize)
	if err != nil {
		return fmt.Errorf("gridfs.chunk_size: %w", err)
	}
	if parsed < 4*1024 {
		return fmt.Errorf("gridfs.chunk_size must be at least 4kb, got %s", c.GridFS.ChunkSize)
	}
	if parsed > 16*1024*1024 {
		return fmt.Errorf("gridfs.chunk_size must be at most 16mb, got %s", c.GridFS.ChunkSize)
	}
	c.GridFS.ChunkSizeRaw = parsed

	switch c.GridFS.Compression {
	case "", "zstd", "gzip":
	default:
		return fmt.Errorf("gridfs.compression must be empty, zstd or gzip, got %q", c.GridFS.Compression)
	}

	if c.GridFS.CacheSize != "" {
		cacheParsed, err := ParseByteSize(c.GridFS.CacheSize)
		if err != nil {
			return fmt.Errorf("gridfs.cache_size: %w", err)
		}
		c.GridFS.CacheSizeRaw = cacheParsed
	}

	return nil
}

// ParseByteSize converte strings human-readable como "256kb", "1mb" para bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Ordenado do sufixo mais longo para o mais curto
	// para evitar que "mb" matche como "b"
	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	// Tenta interpretar como número puro (bytes)
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
