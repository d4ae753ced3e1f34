package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/filecrate/filecrate/internal/storage"
)

// AppConfig holds the application-level configuration
type AppConfig struct {
	StoragePath  string `mapstructure:"storage_path"`
	BaseURL      string `mapstructure:"base_url"`
	FileMode     string `mapstructure:"file_mode"`
	DirMode      string `mapstructure:"dir_mode"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	Port         int    `mapstructure:"port"`
	MetadataPath string `mapstructure:"metadata_path"`
	APIKeyHash   string `mapstructure:"api_key_hash"`
	MaxUploadMB  int64  `mapstructure:"max_upload_mb"`
}

var Config *AppConfig

func LoadConfig(path string) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	viper.SetDefault("storage_path", "./data/files")
	viper.SetDefault("base_url", "")
	viper.SetDefault("file_mode", "")
	viper.SetDefault("dir_mode", "")
	viper.SetDefault("chunk_size", 0)
	viper.SetDefault("port", 8080)
	viper.SetDefault("metadata_path", "./data/metadata")
	viper.SetDefault("api_key_hash", "")
	viper.SetDefault("max_upload_mb", 512)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("⚠️ Could not read config file, using defaults: %v", err)
	}

	var appConfig AppConfig
	if err := viper.Unmarshal(&appConfig); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	Config = &appConfig
}

// StorageOptions translates the loaded configuration into the explicit
// options the storage constructor takes. Mode strings are octal, e.g.
// "0644"; empty means "leave the OS default".
func (c *AppConfig) StorageOptions() (storage.Options, error) {
	fileMode, err := parseMode(c.FileMode)
	if err != nil {
		return storage.Options{}, fmt.Errorf("file_mode: %w", err)
	}
	dirMode, err := parseMode(c.DirMode)
	if err != nil {
		return storage.Options{}, fmt.Errorf("dir_mode: %w", err)
	}
	return storage.Options{
		Root:      c.StoragePath,
		BaseURL:   c.BaseURL,
		FileMode:  fileMode,
		DirMode:   dirMode,
		ChunkSize: c.ChunkSize,
	}, nil
}

func parseMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q: %v", s, err)
	}
	return os.FileMode(v), nil
}
