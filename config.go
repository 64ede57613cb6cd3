/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EngineConfig holds the operational knobs for a ZoneData that are not
// part of SignConf (which is produced by an external policy loader).
// It is intentionally small: the engine itself owns no network, CLI, or
// database surface, following spec.md's Non-goals.
type EngineConfig struct {
	DefaultTTL    uint32 `mapstructure:"default_ttl" validate:"required"`
	BackupFile    string `mapstructure:"backup_file"`
	LogFile       string `mapstructure:"log_file" validate:"required"`
	Debug         bool   `mapstructure:"debug"`
	RetainOnEmpty bool   `mapstructure:"retain_denial_on_empty_parent"`
	Nsec3OptOut   bool   `mapstructure:"nsec3_opt_out"`
}

// LoadEngineConfig reads an EngineConfig from cfgfile via viper (yaml,
// json, toml, whatever the extension implies, matching tdns.ValidateConfig's
// loader) and validates it with go-playground/validator the same way the
// teacher validates its own Config.
func LoadEngineConfig(cfgfile string) (*EngineConfig, error) {
	v := viper.New()
	v.SetConfigFile(cfgfile)
	v.SetDefault("default_ttl", uint32(3600))
	v.SetDefault("retain_denial_on_empty_parent", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, statusErrf(StatusErr, "LoadEngineConfig", "read %s: %v", cfgfile, err)
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, statusErrf(StatusErr, "LoadEngineConfig", "unmarshal: %v", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, statusErrf(StatusAssertErr, "LoadEngineConfig", "validate: %v", err)
	}

	return &cfg, nil
}

func (c *EngineConfig) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("EngineConfig{DefaultTTL:%d Debug:%v RetainOnEmpty:%v Nsec3OptOut:%v}",
		c.DefaultTTL, c.Debug, c.RetainOnEmpty, c.Nsec3OptOut)
}
