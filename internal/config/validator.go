package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig performs validation on the GlobalConfig structure using
// the struct-level validate tags, plus the cross-field rules the tags
// cannot express.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			first := validationErrors[0]
			return fmt.Errorf("config validation failed on field '%s' (rule '%s')", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.CacheConfig.Backend == "sqlite" && cfg.CacheConfig.SQLitePath == "" {
		return fmt.Errorf("cache_config.sqlite_path is required when backend is sqlite")
	}
	if cfg.StorageConfig.Enabled && cfg.StorageConfig.OutputDir == "" {
		return fmt.Errorf("storage_config.output_dir is required when storage is enabled")
	}

	return nil
}
