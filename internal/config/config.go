package config

import "time"

type Config struct {
	ExporterPort      int             `mapstructure:"exporter_port" validate:"required,min=1,max=65535"`
	PollingInterval   time.Duration   `mapstructure:"polling_interval" validate:"required,min=1s"`
	LogLevel          string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Timezone          string          `mapstructure:"timezone" validate:"required,location"`
	CacheTTL          time.Duration   `mapstructure:"cache_ttl" validate:"min=0"`
	Selection         SelectionConfig `mapstructure:"selection"`
	Metrics           []MetricConfig  `mapstructure:"metrics" validate:"required,min=1,dive"`
	TargetAWSAccounts []AWSAccount    `mapstructure:"target_aws_accounts" validate:"required,min=1,dive"`
}

// SelectionConfig holds the defaults the period selection starts from.
type SelectionConfig struct {
	DefaultPreset string           `mapstructure:"default_preset" validate:"required,preset"`
	Comparison    ComparisonConfig `mapstructure:"comparison"`
}

type ComparisonConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Mode    string `mapstructure:"mode" validate:"required,oneof=previous_period previous_year custom"`
}

type MetricConfig struct {
	MetricName        string         `mapstructure:"metric_name" validate:"required"`
	MetricDescription string         `mapstructure:"metric_description"`
	Granularity       string         `mapstructure:"granularity" validate:"required,oneof=DAILY MONTHLY"`
	MetricType        string         `mapstructure:"metric_type" validate:"required"`
	RecordTypes       []string       `mapstructure:"record_types"`
	GroupBy           *GroupByConfig `mapstructure:"group_by"`
	TagFilters        []TagFilter    `mapstructure:"tag_filters" validate:"dive"`
}

type GroupByConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Groups         []GroupConfig `mapstructure:"groups" validate:"max=2,dive"`
	MergeMinorCost *MergeConfig  `mapstructure:"merge_minor_cost"`
}

type GroupConfig struct {
	Type      string       `mapstructure:"type" validate:"required,oneof=DIMENSION TAG COST_CATEGORY"`
	Key       string       `mapstructure:"key" validate:"required"`
	LabelName string       `mapstructure:"label_name" validate:"required"`
	Alias     *AliasConfig `mapstructure:"alias"`
}

type AliasConfig struct {
	LabelName string            `mapstructure:"label_name" validate:"required"`
	Map       map[string]string `mapstructure:"map"`
}

type MergeConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
	TagValue  string  `mapstructure:"tag_value"`
}

type TagFilter struct {
	TagKey    string   `mapstructure:"tag_key" validate:"required"`
	TagValues []string `mapstructure:"tag_values" validate:"required,min=1"`
}

type AWSAccount struct {
	AccountId       string            `mapstructure:"account_id" validate:"required"`
	AssumedRoleName string            `mapstructure:"assumed_role_name" validate:"required"`
	Labels          map[string]string `mapstructure:"labels"`
}

// Location resolves the configured time zone. "Local" and "" mean the
// process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
