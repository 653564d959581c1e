// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	ErrorLog    string `yaml:"error_log"`
}

// Server configures the webhook HTTP listener.
type Server struct {
	Port         int   `yaml:"port"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Storage selects the history backend and where data lives.
type Storage struct {
	Backend    string `yaml:"backend"` // csv|sqlite|memory
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	Journal    string `yaml:"journal_path"`
}

// Scripts controls suggested-script output.
type Scripts struct {
	Dir         string `yaml:"dir"`
	EmitDefault bool   `yaml:"emit_default"`
}

// Analysis controls chart export.
type Analysis struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Schedule string `yaml:"schedule"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Scripts  Scripts  `yaml:"scripts"`
	Analysis Analysis `yaml:"analysis"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "stratopt",
			Env:         "dev",
			MetricsAddr: ":9100",
			LogLevel:    "info",
			ErrorLog:    "logs/errors.log",
		},
		Server:  Server{Port: 5000, MaxBodyBytes: 1 << 20},
		Storage: Storage{Backend: "csv", DataDir: "data", SQLitePath: "data/history.db", Journal: "data/events.jsonl"},
		Scripts: Scripts{Dir: "scripts", EmitDefault: true},
		Analysis: Analysis{
			Enabled: true,
			Dir:     "analysis",
		},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadWithEnv loads path (missing file falls back to Default), then any .env files, then
// environment overrides. An empty path skips the YAML step.
func LoadWithEnv(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.App.MetricsAddr = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.SQLitePath = filepath.Join(v, "history.db")
		c.Storage.Journal = filepath.Join(v, "events.jsonl")
	}
	if v := os.Getenv("ANALYSIS_SCHEDULE"); v != "" {
		c.Analysis.Schedule = v
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "csv", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend %q: want csv, sqlite or memory", c.Storage.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.Backend == "csv" && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required for csv backend")
	}
	return nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
