// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads voyager service configuration from an optional
// YAML file with environment variable overrides on top. Environment
// always wins so container deployments can override a baked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full voyager service configuration.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int `yaml:"port"`

	// LLMBackend selects the model provider: "ollama", "local",
	// "openai". Default: "ollama"
	LLMBackend string `yaml:"llm_backend"`

	// StoreBackend selects session storage: "memory", "redis",
	// "badger". Default: "memory"
	StoreBackend string `yaml:"store_backend"`

	// RedisAddr is the Redis address when StoreBackend is "redis".
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword is the Redis auth password, usually injected via
	// VOYAGE_REDIS_PASSWORD rather than the file.
	RedisPassword string `yaml:"redis_password"`

	// BadgerPath is the on-disk path when StoreBackend is "badger".
	// Empty means in-memory Badger.
	BadgerPath string `yaml:"badger_path"`

	// SessionTTL is thread inactivity expiry. Default: 30m
	SessionTTL time.Duration `yaml:"session_ttl"`

	// PolicyCorpusPath points at the travel-policy YAML corpus.
	// Empty uses the built-in corpus.
	PolicyCorpusPath string `yaml:"policy_corpus_path"`

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string `yaml:"otel_endpoint"`

	// GinMode sets the Gin framework mode ("debug", "release",
	// "test").
	GinMode string `yaml:"gin_mode"`

	// TurnTimeout bounds one full turn. Default: 60s
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// LogDir is where the service writes its log file; empty logs to
	// stderr only.
	LogDir string `yaml:"log_dir"`
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), applies environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fall through to env and defaults.
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOYAGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("VOYAGE_LLM_BACKEND"); v != "" {
		c.LLMBackend = v
	}
	if v := os.Getenv("VOYAGE_STORE_BACKEND"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("VOYAGE_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("VOYAGE_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("VOYAGE_BADGER_PATH"); v != "" {
		c.BadgerPath = v
	}
	if v := os.Getenv("VOYAGE_POLICY_CORPUS"); v != "" {
		c.PolicyCorpusPath = v
	}
	if v := os.Getenv("VOYAGE_OTEL_ENDPOINT"); v != "" {
		c.OTelEndpoint = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		c.GinMode = v
	}
	if v := os.Getenv("VOYAGE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SessionTTL = d
		}
	}
	if v := os.Getenv("VOYAGE_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TurnTimeout = d
		}
	}
	if v := os.Getenv("VOYAGE_LOG_DIR"); v != "" {
		c.LogDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 12310
	}
	if c.LLMBackend == "" {
		c.LLMBackend = "ollama"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = "memory"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.OTelEndpoint == "" {
		c.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if c.TurnTimeout == 0 {
		c.TurnTimeout = 60 * time.Second
	}
}
