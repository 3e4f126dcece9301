// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the specgraph CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/specgraph/internal/logging"
	"github.com/pdiddy/specgraph/internal/pipeline"
	"github.com/pdiddy/specgraph/internal/secrets"
	"github.com/pdiddy/specgraph/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const secretsDir = ".secrets/"

var (
	// cfg is the configuration of the running command, resolved from
	// defaults, the config file, SPECGRAPH_* variables, flags and secrets.
	cfg types.PipelineConfig

	logger = zap.NewNop()

	// flagKeys maps, per command, flag names to the configuration keys
	// they override.
	flagKeys = map[*cobra.Command]map[string]string{}
)

// rootCmd is the base command for the specgraph CLI.
var rootCmd = &cobra.Command{
	Use:   "specgraph",
	Short: "Extract the concept dependency graph of a markup specification",
	Long: `specgraph reads a large markup specification (by default the WHATWG
HTML standard), finds the defining occurrence of every term, and records
which other terms each definition refers to.

Each stage is a subcommand: fetch downloads the document, extract builds
graph.json, concepts.json and unused.html, serve republishes them over HTTP,
and concepts queries the runs saved in the local store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		c, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := logging.New(c.Log)
		if err != nil {
			return err
		}

		s, err := secrets.Load(secretsDir, log)
		if err != nil {
			return err
		}
		secrets.Apply(&c, s)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", zap.Strings("keys", keys))
		}

		cfg = c
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./specgraph.yaml or ~/.config/specgraph/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-mode", "development", "log format: development (console) or production (JSON)")
	flagKeys[rootCmd] = map[string]string{
		"log-level": "log.level",
		"log-mode":  "log.mode",
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("specgraph")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "specgraph"))
		}
	}

	viper.SetEnvPrefix("SPECGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := setDefaults(viper.GetViper(), pipeline.DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "warning: configuration defaults:", err)
	}
	// Keys without a default still need an environment binding.
	for _, key := range []string{"oracle.api_key", "graphdb.password", "graphdb.uri", "output.metrics_file"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every field of def as a viper default, so the
// environment can override any key and the config file may be partial.
func setDefaults(v *viper.Viper, def types.PipelineConfig) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("reading defaults: %w", err)
	}
	walkDefaults("", tree, v.SetDefault)
	return nil
}

func walkDefaults(prefix string, tree map[string]any, set func(string, any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(key, sub, set)
			continue
		}
		set(key, val)
	}
}

// bindFlags binds the flags of cmd and of its root command to their
// configuration keys. Only the running command binds, so commands sharing
// a key do not override each other.
func bindFlags(cmd *cobra.Command) error {
	for _, c := range []*cobra.Command{cmd.Root(), cmd} {
		for name, key := range flagKeys[c] {
			f := c.Flags().Lookup(name)
			if f == nil {
				f = c.PersistentFlags().Lookup(name)
			}
			if f == nil {
				continue
			}
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	return nil
}

func loadConfig() (types.PipelineConfig, error) {
	c := pipeline.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
