package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags, then the cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Storage.Type == "s3" {
		if b, _ := cfg.Storage.S3["bucket"].(string); b == "" {
			return fmt.Errorf("storage.s3.bucket: required when storage.type is s3")
		}
	}
	if cfg.Repository.Type == "mysql" {
		if dsn, _ := cfg.Repository.MySQL["dsn"].(string); dsn == "" {
			return fmt.Errorf("repository.mysql.dsn: required when repository.type is mysql")
		}
	}
	if cfg.Retention.Enabled && cfg.Retention.Interval > cfg.Retention.MaxAge {
		return fmt.Errorf("retention.interval (%s) must not exceed retention.max_age (%s)",
			cfg.Retention.Interval, cfg.Retention.MaxAge)
	}
	if cfg.Lock.URLTTL > 7*24*time.Hour {
		return fmt.Errorf("lock.url_ttl: %s exceeds the 7 day presign limit", cfg.Lock.URLTTL)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
