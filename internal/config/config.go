package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	appdefaults "github.com/saker-ai/chiku/config"

	"github.com/saker-ai/chiku/internal/logger"
	"github.com/spf13/viper"
)

const envPrefix = "chiku"

// SystemConfig represents the listen host and port.
type SystemConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CORSConfig holds the headers attached to every backend response.
type CORSConfig struct {
	AllowOrigin  string `mapstructure:"allow_origin"`
	AllowHeaders string `mapstructure:"allow_headers"`
}

// ProvidersConfig points at the third-party media APIs.
type ProvidersConfig struct {
	ImagePrimaryURL  string        `mapstructure:"image_primary_url"`
	ImageFallbackURL string        `mapstructure:"image_fallback_url"`
	TTSURL           string        `mapstructure:"tts_url"`
	TTSVoice         string        `mapstructure:"tts_voice"`
	NekosURL         string        `mapstructure:"nekos_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ClientConfig is used by the terminal client.
type ClientConfig struct {
	BackendURL  string `mapstructure:"backend_url"`
	DownloadDir string `mapstructure:"download_dir"`
}

// Config represents the full application config.
type Config struct {
	RootDir      string          `mapstructure:"-"`
	HTTPAddr     string          `mapstructure:"http_addr"`
	TLSCertPath  string          `mapstructure:"tls_cert_path"`
	TLSKeyPath   string          `mapstructure:"tls_key_path"`
	TLSRequired  bool            `mapstructure:"tls_required"`
	TLSDisable   bool            `mapstructure:"tls_disable"`
	PersonaFile  string          `mapstructure:"persona_file"`
	SystemConfig SystemConfig    `mapstructure:"system_config"`
	CORS         CORSConfig      `mapstructure:"cors"`
	Providers    ProvidersConfig `mapstructure:"providers"`
	Persona      Persona         `mapstructure:"persona"`
	Client       ClientConfig    `mapstructure:"client"`
	Log          logger.Config   `mapstructure:"log"`
}

// Load reads the embedded defaults, then conf.yaml from the root dir when present.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finish(v, rootDir)
}

// LoadConfig reads an explicit config file on top of the embedded defaults.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("CHIKU_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finish(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("http_addr", "")
	v.SetDefault("tls_required", false)
	v.SetDefault("tls_disable", true)
	v.SetDefault("tls_cert_path", "")
	v.SetDefault("tls_key_path", "")
	v.SetDefault("persona_file", "")
	v.SetDefault("providers.timeout", "0s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)
	if err := derivePersona(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func deriveHTTPAddr(cfg *Config) {
	if cfg.HTTPAddr != "" {
		return
	}
	host := cfg.SystemConfig.Host
	port := cfg.SystemConfig.Port
	if port == 0 {
		port = 8787
	}
	if host == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(port))
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("CHIKU_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, filepath.Join("certs", "server.crt"))
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, filepath.Join("certs", "server.key"))
	cfg.Client.DownloadDir = resolvePath(cfg.RootDir, cfg.Client.DownloadDir, "downloads")
	if strings.TrimSpace(cfg.PersonaFile) != "" {
		cfg.PersonaFile = resolvePath(cfg.RootDir, cfg.PersonaFile, "")
	}
	if cfg.Log.File.Path != "" && !filepath.IsAbs(cfg.Log.File.Path) {
		cfg.Log.File.Path = filepath.Join(cfg.RootDir, cfg.Log.File.Path)
	}
}

func derivePersona(cfg *Config) error {
	if cfg.PersonaFile != "" {
		persona, err := ReadPersona(cfg.PersonaFile)
		if err != nil {
			return fmt.Errorf("read persona %s: %w", cfg.PersonaFile, err)
		}
		cfg.Persona = cfg.Persona.merge(persona)
	}
	if strings.TrimSpace(cfg.Persona.Name) == "" {
		cfg.Persona.Name = DefaultPersonaName
	}
	return nil
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
