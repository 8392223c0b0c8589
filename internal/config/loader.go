package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

// Load reads configuration from the specified YAML file and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Support environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Default values
	v.SetDefault("exporter_port", 9090)
	v.SetDefault("polling_interval", 8*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "Local")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("selection.default_preset", string(timeutil.Last30Days))
	v.SetDefault("selection.comparison.enabled", false)
	v.SetDefault("selection.comparison.mode", string(timeutil.PreviousPeriod))

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags, including the preset and location rules.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("preset", func(fl validator.FieldLevel) bool {
		_, ok := timeutil.ParsePreset(fl.Field().String())
		return ok
	}); err != nil {
		return errors.Wrap(err, "registering preset validation")
	}
	if err := validate.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		c := Config{Timezone: fl.Field().String()}
		_, err := c.Location()
		return err == nil
	}); err != nil {
		return errors.Wrap(err, "registering location validation")
	}

	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "validating config")
	}
	return nil
}
