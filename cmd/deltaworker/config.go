package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/deltaxpc/internal/protocol/session"
)

type workerConfig struct {
	LogLevel    string
	Cores       []string
	Session     session.Config
	MetricsAddr string
}

type fileConfig struct {
	LogLevel         string   `toml:"log_level"`
	Cores            []string `toml:"cores"`
	ConnectTimeout   string   `toml:"connect_timeout"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	MaxPayloadBytes  uint64   `toml:"max_payload_bytes"`
	MetricsAddr      string   `toml:"metrics_addr"`
}

func defaultWorkerConfig() workerConfig {
	return workerConfig{
		Cores:   []string{},
		Session: session.DefaultConfig(),
	}
}

func loadWorkerConfig(path string) (workerConfig, error) {
	cfg := defaultWorkerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return workerConfig{}, fmt.Errorf("load worker config: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("cores") {
		cfg.Cores = normalizeCores(raw.Cores)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return workerConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v <= 0 {
			return workerConfig{}, fmt.Errorf("parse %s: must be positive", d.key)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_payload_bytes") {
		cfg.Session.Limits.MaxPayloadBytes = raw.MaxPayloadBytes
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}

func normalizeCores(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, c := range in {
		v := strings.TrimSpace(c)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
