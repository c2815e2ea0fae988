package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// unmarshalCompliance decodes the compliance section. Deadlines arrive as
// RFC3339 strings in yml; viper's default hooks do not decode into time.Time.
func unmarshalCompliance(v *viper.Viper) (ComplianceConfig, error) {
	var cfg ComplianceConfig
	err := v.UnmarshalKey("compliance", &cfg,
		viper.DecodeHook(mapstructure.StringToTimeHookFunc(time.RFC3339)))
	return cfg, err
}

// ComplianceConfig holds the regulator-facing rules that operators tune per
// reporting cycle without redeploying: late-fee deadlines keyed by submission
// period, and the fallback deadline used when a period has no explicit entry.
type ComplianceConfig struct {
	DefaultLateFeeDeadline time.Time            `mapstructure:"defaultLateFeeDeadline"`
	LateFeeDeadlines       map[string]time.Time `mapstructure:"lateFeeDeadlines"`
}

// LateFeeDeadline resolves the late-fee deadline for a submission period.
func (c ComplianceConfig) LateFeeDeadline(period string) time.Time {
	if deadline, ok := c.LateFeeDeadlines[strings.TrimSpace(period)]; ok {
		return deadline
	}
	return c.DefaultLateFeeDeadline
}

func DefaultComplianceConfig() ComplianceConfig {
	return ComplianceConfig{
		DefaultLateFeeDeadline: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		LateFeeDeadlines:       map[string]time.Time{},
	}
}

type ComplianceConfigHolder struct {
	current atomic.Value // holds ComplianceConfig
}

func NewComplianceConfigHolder() (*ComplianceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("compliance")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/packflow/config") // Volume-mounted config
	v.AddConfigPath("/etc/packflow")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("PACKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		defaults := DefaultComplianceConfig()
		v.SetDefault("compliance.defaultLateFeeDeadline", defaults.DefaultLateFeeDeadline)
		v.SetDefault("compliance.lateFeeDeadlines", defaults.LateFeeDeadlines)
	}

	cfg, err := unmarshalCompliance(v)
	if err != nil {
		return nil, err
	}
	if err := validateComplianceConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ComplianceConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalCompliance(v)
		if err != nil {
			log.Printf("[compliance-config] reload failed: %v", err)
			return
		}
		if err := validateComplianceConfig(updated); err != nil {
			log.Printf("[compliance-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[compliance-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticComplianceConfigHolder wraps a fixed config. Used by tests and
// one-shot tools that have no config file to watch.
func NewStaticComplianceConfigHolder(cfg ComplianceConfig) *ComplianceConfigHolder {
	holder := &ComplianceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ComplianceConfigHolder) Current() ComplianceConfig {
	cfg, _ := h.current.Load().(ComplianceConfig)
	return cfg
}

func validateComplianceConfig(cfg ComplianceConfig) error {
	if cfg.DefaultLateFeeDeadline.IsZero() {
		return errors.New("compliance config requires a default late fee deadline")
	}
	for period, deadline := range cfg.LateFeeDeadlines {
		if strings.TrimSpace(period) == "" {
			return errors.New("compliance config contains an empty submission period")
		}
		if deadline.IsZero() {
			return errors.New("compliance config contains a zero deadline for period " + period)
		}
	}
	return nil
}
