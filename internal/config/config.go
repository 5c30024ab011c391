package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/tanq16/ferry/internal/progress"
	"github.com/tanq16/ferry/internal/utils"
)

var (
	ErrInvalidWorkers      = errors.New("workers must be at least 1")
	ErrInvalidChunkSize    = errors.New("chunk size must be greater than 0")
	ErrInvalidBufferSize   = errors.New("buffer size must not be smaller than chunk size")
	ErrInvalidEmitInterval = errors.New("emit interval must be positive")
	ErrInvalidTimeout      = errors.New("timeouts must not be negative")
)

const EnvPrefix = "FERRY"

type Config struct {
	Timeout         time.Duration     `mapstructure:"timeout"`
	KeepAlive       time.Duration     `mapstructure:"keep_alive_timeout"`
	UserAgent       string            `mapstructure:"user_agent"`
	ProxyURL        string            `mapstructure:"proxy"`
	ProxyUsername   string            `mapstructure:"proxy_username"`
	ProxyPassword   string            `mapstructure:"proxy_password"`
	Headers         map[string]string `mapstructure:"headers"`
	Workers         int               `mapstructure:"workers"`
	ChunkSize       int               `mapstructure:"chunk_size"`
	BufferSize      int               `mapstructure:"buffer_size"`
	EmitInterval    time.Duration     `mapstructure:"emit_interval"`
	ProbeUploadSize bool              `mapstructure:"probe_upload_size"`
	FailOnStatus    bool              `mapstructure:"fail_on_status"`
	RemovePartial   bool              `mapstructure:"remove_partial"`
	S3Profile       string            `mapstructure:"s3_profile"`
	S3Region        string            `mapstructure:"s3_region"`
	PresignExpiry   time.Duration     `mapstructure:"presign_expiry"`
	LogFile         string            `mapstructure:"log_file"`
	Debug           bool              `mapstructure:"debug"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("keep_alive_timeout", 90*time.Second)
	v.SetDefault("user_agent", utils.ToolUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("proxy_username", "")
	v.SetDefault("proxy_password", "")
	v.SetDefault("workers", 1)
	v.SetDefault("chunk_size", utils.DefaultChunkSize)
	v.SetDefault("buffer_size", utils.DefaultBufferSize)
	v.SetDefault("emit_interval", progress.DefaultInterval)
	v.SetDefault("probe_upload_size", true)
	v.SetDefault("fail_on_status", false)
	v.SetDefault("remove_partial", false)
	v.SetDefault("s3_profile", "")
	v.SetDefault("s3_region", "")
	v.SetDefault("presign_expiry", 15*time.Minute)
	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)
}

// NewViper returns a viper instance with defaults and FERRY_* environment
// bindings. An optional .env file in the working directory is loaded first.
func NewViper() *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("op", "config").Err(err).Msg("could not load .env file")
	}
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads cfgFile, or $HOME/.ferry.yaml when cfgFile is empty. A
// missing default file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Debug().Str("op", "config").Err(err).Msg("no home directory, skipping config file")
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(".ferry")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.Debug().Str("op", "config").Msgf("using config file %s", filepath.Clean(v.ConfigFileUsed()))
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.BufferSize < c.ChunkSize {
		return ErrInvalidBufferSize
	}
	if c.EmitInterval <= 0 {
		return ErrInvalidEmitInterval
	}
	if c.Timeout < 0 || c.KeepAlive < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// HTTPClientConfig derives the transport settings.
func (c *Config) HTTPClientConfig() utils.HTTPClientConfig {
	userAgent := c.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	proxyURL, proxyUsername, proxyPassword := c.ProxyURL, c.ProxyUsername, c.ProxyPassword
	// Credentials embedded in the proxy URL apply unless set explicitly.
	if parsed, err := url.Parse(proxyURL); err == nil && parsed.User != nil && proxyUsername == "" {
		proxyUsername = parsed.User.Username()
		if password, set := parsed.User.Password(); set {
			proxyPassword = password
		}
		parsed.User = nil
		proxyURL = parsed.String()
	}
	return utils.HTTPClientConfig{
		Timeout:        c.Timeout,
		KATimeout:      c.KeepAlive,
		ProxyURL:       proxyURL,
		ProxyUsername:  proxyUsername,
		ProxyPassword:  proxyPassword,
		UserAgent:      userAgent,
		Headers:        c.Headers,
		HighThreadMode: c.Workers > 5,
	}
}
