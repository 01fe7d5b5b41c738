package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. TALKTIME_SERVER_ADDR.
const EnvPrefix = "TALKTIME"

type Service struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}
type Services struct {
	ASR         Service `yaml:"asr" mapstructure:"asr"`
	Diarization Service `yaml:"diarization" mapstructure:"diarization"`
	Classifier  Service `yaml:"classifier" mapstructure:"classifier"`
}

// Pipeline carries the speech model settings sent to the ASR service.
type Pipeline struct {
	Model       string `yaml:"model" mapstructure:"model"` // tiny|base|medium|large
	Device      string `yaml:"device" mapstructure:"device"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	ComputeType string `yaml:"compute_type" mapstructure:"compute_type"`
	Language    string `yaml:"language" mapstructure:"language"` // empty = detect
	Align       bool   `yaml:"align" mapstructure:"align"`
}
type Audio struct {
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int    `yaml:"channels" mapstructure:"channels"`
	FFmpeg     string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
}
type Server struct {
	Addr          string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxUploadMB   int64         `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`
}
type Logging struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"` // text|json
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}
type Paths struct {
	Uploads       string `yaml:"uploads" mapstructure:"uploads"`
	KeepArtifacts bool   `yaml:"keep_artifacts" mapstructure:"keep_artifacts"`
}

type Root struct {
	Server   Server   `yaml:"server" mapstructure:"server"`
	Audio    Audio    `yaml:"audio" mapstructure:"audio"`
	Pipeline Pipeline `yaml:"pipeline" mapstructure:"pipeline"`
	Services Services `yaml:"services" mapstructure:"services"`
	Paths    Paths    `yaml:"paths" mapstructure:"paths"`
	Logging  Logging  `yaml:"logging" mapstructure:"logging"`
	// Token authenticates the diarization model; read from TOKEN.
	Token string `yaml:"token" mapstructure:"token"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.read_timeout", 10*time.Minute)
	v.SetDefault("server.write_timeout", 30*time.Minute)
	v.SetDefault("server.max_upload_mb", 200)
	v.SetDefault("server.shutdown_grace", 10*time.Second)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.ffmpeg", "ffmpeg")

	v.SetDefault("pipeline.model", "tiny")
	v.SetDefault("pipeline.device", "cpu")
	v.SetDefault("pipeline.batch_size", 8)
	v.SetDefault("pipeline.compute_type", "int8")
	v.SetDefault("pipeline.language", "")
	v.SetDefault("pipeline.align", true)

	v.SetDefault("services.asr.url", "http://127.0.0.1:8001")
	v.SetDefault("services.asr.timeout", 20*time.Minute)
	v.SetDefault("services.diarization.url", "http://127.0.0.1:8002")
	v.SetDefault("services.diarization.timeout", 20*time.Minute)
	v.SetDefault("services.classifier.url", "http://127.0.0.1:8003")
	v.SetDefault("services.classifier.timeout", time.Minute)

	v.SetDefault("paths.uploads", "uploads")
	v.SetDefault("paths.keep_artifacts", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("token", "")
}

// New returns a viper instance with defaults, env overrides and the config
// search path wired. Callers may bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("token", "TOKEN", EnvPrefix+"_TOKEN")
	return v
}

// LoadDotEnv copies KEY=value pairs from an env file (./.env by convention)
// into the process environment. Variables that are already set win, and a
// missing file is not an error. Call it before Load.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	d := viper.New()
	d.SetConfigFile(path)
	d.SetConfigType("env")
	if err := d.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, key := range d.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, d.GetString(key)); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}

// searchPaths mirrors the layout used across the project: config/<env>/ first,
// then the shared config.
func searchPaths() []string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return []string{
		filepath.Join("config", env),
		filepath.Join("src", "shared"),
	}
}

// Load reads file (or the first config.yaml found on the search path) into
// Root. A missing config file is fine; defaults and env still apply.
func Load(v *viper.Viper, file string) (*Root, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate fails fast on settings that would otherwise only surface on the
// first request.
func (c *Root) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("TOKEN is not set (diarization model token)")
	}
	for name, s := range map[string]Service{
		"asr":         c.Services.ASR,
		"diarization": c.Services.Diarization,
		"classifier":  c.Services.Classifier,
	} {
		if s.URL == "" {
			return fmt.Errorf("services.%s.url must be provided", name)
		}
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("invalid pipeline.batch_size: %d", c.Pipeline.BatchSize)
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		return fmt.Errorf("invalid audio format: %d Hz, %d ch", c.Audio.SampleRate, c.Audio.Channels)
	}
	if c.Paths.Uploads == "" {
		return errors.New("paths.uploads must be provided")
	}
	return nil
}

// YAML renders the effective configuration with the token redacted.
func (c *Root) YAML() ([]byte, error) {
	cp := *c
	if cp.Token != "" {
		cp.Token = "<redacted>"
	}
	return yaml.Marshal(&cp)
}
