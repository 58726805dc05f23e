// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the configuration of the htab command. Values are read, in
// increasing order of precedence, from defaults, the config file, HTAB_*
// environment variables and command line flags.
type Config struct {
	Size    uint32 `mapstructure:"size"`
	Hash    string `mapstructure:"hash"`
	Verbose bool   `mapstructure:"verbose"`
	Slots   bool   `mapstructure:"slots"`
	Format  string `mapstructure:"format"`
}

func loadConfig(cmd *cobra.Command) (Config, error) {
	var c Config
	v := viper.New()

	v.SetDefault("size", defaultSize)
	v.SetDefault("hash", "sdbm")
	v.SetDefault("format", "text")

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return c, err
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// The config type stays unset so that only names with an extension
		// match, never a bare "htab".
		v.SetConfigName("htab")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "htab"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file was found, unless one was named.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return c, err
		}
	}

	v.SetEnvPrefix("htab")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
