// SPDX-FileCopyrightText: 2026 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dtn7/dtn-go-client/pkg/bpv7"
)

type ConfigError struct {
	message string
	cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{message: message, cause: cause}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Error during config parsing: %v", e.message)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// config holds everything dtnclient can read from its TOML file.
// Command line arguments take precedence over any of these values.
type config struct {
	Socket string
	Create createConfig
	Watch  watchConfig
}

type tomlConfig struct {
	Socket string
	Create tomlCreateConfig
	Watch  tomlWatchConfig
}

type tomlCreateConfig struct {
	Source   string
	Lifetime string
}

type createConfig struct {
	Source   bpv7.EndpointID
	Lifetime string
}

type tomlWatchConfig struct {
	Interval string
}

type watchConfig struct {
	Interval time.Duration
}

func parse(filename string) (config, error) {
	var tomlConf tomlConfig
	if _, err := toml.DecodeFile(filename, &tomlConf); err != nil {
		return config{}, NewConfigError("Error parsing toml", err)
	}

	conf := config{Socket: tomlConf.Socket}

	if tomlConf.Create.Source != "" {
		source, err := bpv7.NewEndpointID(tomlConf.Create.Source)
		if err != nil {
			return config{}, NewConfigError("Error parsing create source", err)
		}
		conf.Create.Source = source
	}
	conf.Create.Lifetime = tomlConf.Create.Lifetime

	if tomlConf.Watch.Interval != "" {
		interval, err := time.ParseDuration(tomlConf.Watch.Interval)
		if err != nil {
			return config{}, NewConfigError("Error parsing watch interval", err)
		}
		conf.Watch.Interval = interval
	}

	return conf, nil
}
