package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	MinIO struct {
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"accessKeyId"`
		SecretAccessKey string `yaml:"secretAccessKey"`
		UseSSL          bool   `yaml:"useSSL"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		URLExpiry       string `yaml:"urlExpiry"`
	} `yaml:"minio"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Timer struct {
		QuestionSeconds int `yaml:"questionSeconds"`
	} `yaml:"timer"`
	Scoreboard struct {
		PageSize int    `yaml:"pageSize"`
		Rotate   string `yaml:"rotate"`
		Scoring  string `yaml:"scoring"` // fixed or partial
		Points   int    `yaml:"points"`
	} `yaml:"scoreboard"`
}

// Default returns the configuration used when a field is left empty.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Redis.TTL = "6h"
	cfg.MinIO.Bucket = "trivia"
	cfg.MinIO.URLExpiry = "24h"
	cfg.Questions.TTL = "10m"
	cfg.Timer.QuestionSeconds = 5
	cfg.Scoreboard.PageSize = 8
	cfg.Scoreboard.Rotate = "4s"
	cfg.Scoreboard.Scoring = "fixed"
	cfg.Scoreboard.Points = 10
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
