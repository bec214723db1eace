// Copyright 2023 Commonwealth Scientific and Industrial Research Organisation (CSIRO) ABN 41 687 119 230
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/inhies/go-bytesize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	log "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "RELAY_AUTOCONFIG"

// Names for config dir and file - stored in the os.UserConfigDir() directory
const CONFIG_FILE_DIR = "relay-autoconfig"
const CONFIG_FILE_NAME = "config.yaml"

var CREDENTIAL_ENV = ENV_PREFIX + "_CREDENTIAL"

const DEFAULT_STREAM_TIMEOUT_SECONDS = 30
const DEFAULT_MAX_DECODER_BUFFER = "64KB"

// flags
var (
	contextName       string
	credentialF       string
	timeout           int
	debug             bool
	maxDecoderBufferS string
	outputFormat      string
	silent            bool
)

var logger *log.Logger

// Config is the on-disk shape of the relay-autoconfig CLI's
// configuration: a set of named contexts, one of which is active.
type Config struct {
	Version       string    `yaml:"version"`
	ActiveContext string    `yaml:"active-context"`
	Contexts      []Context `yaml:"contexts"`
}

// Context bundles everything needed to open a reconnecting stream
// against one relay deployment. No event id or cache state is ever
// persisted here: the merge engine's cache and the stream's
// last-event-id both live only for the life of a single process.
type Context struct {
	Name       string `yaml:"name"`
	StreamURL  string `yaml:"stream-url"`
	Credential string `yaml:"credential"`
	Host       string `yaml:"host"` // set Host header if necessary
}

var rootCmd = &cobra.Command{
	Use:   "relay-autoconfig",
	Short: "A command line tool to stream and inspect relay auto-config environments",
	Long: `A command line tool that connects to a relay auto-config SSE feed,
maintains a local cache of environment records, and reports the
resulting insert/update/delete changes as they arrive.`,
}

func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Context (deployment) to use")
	rootCmd.PersistentFlags().StringVar(&credentialF, "credential", "",
		fmt.Sprintf("Relay auto-config credential to use [%s]", CREDENTIAL_ENV))
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", DEFAULT_STREAM_TIMEOUT_SECONDS, "Max. number of seconds to wait for a preflight call to complete")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Set logging level to DEBUG")
	rootCmd.PersistentFlags().StringVar(&maxDecoderBufferS, "max-decoder-buf", DEFAULT_MAX_DECODER_BUFFER,
		"Max. size of buffered SSE event data plus the next line before decoding fails, e.g. '64KB' or '1MB'")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Set format for displaying output [json, yaml]")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Do not show any progress information")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg := log.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}

	logLevel := zapcore.ErrorLevel
	if debug {
		logLevel = zapcore.DebugLevel
	}
	cfg.Level = log.NewAtomicLevelAt(logLevel)
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	SetLogger(l)
}

// MaxDecoderBufferBytes parses the --max-decoder-buf flag with
// go-bytesize, the same way the flag-parsing convention this CLI was
// bootstrapped from accepts human-friendly sizes for other byte
// quantities. A value of 0 disables the decoder's size limit.
func MaxDecoderBufferBytes() int {
	if maxDecoderBufferS == "" {
		return 0
	}
	bs, err := bytesize.Parse(maxDecoderBufferS)
	if err != nil {
		cobra.CheckErr(fmt.Sprintf("invalid --max-decoder-buf value %q: %v", maxDecoderBufferS, err))
	}
	return int(bs)
}

// resolvedCredential returns the relay auto-config credential to use,
// preferring the --credential flag, then the environment variable, then
// the active context's stored value.
func resolvedCredential(ctxt *Context) string {
	if credentialF != "" {
		return credentialF
	}
	if v := os.Getenv(CREDENTIAL_ENV); v != "" {
		return v
	}
	if ctxt != nil {
		return ctxt.Credential
	}
	return ""
}

func GetActiveContext() (ctxt *Context) {
	return GetContext(contextName, true)
}

func GetContext(name string, defaultToActiveContext bool) (ctxt *Context) {
	var err error
	ctxt, err = GetContextWithError(name, defaultToActiveContext)
	if err != nil {
		cobra.CheckErr(err)
	}
	return
}

func GetContextWithError(name string, defaultToActiveContext bool) (ctxt *Context, err error) {
	config, configFile := ReadConfigFile(true)
	if name == "" && defaultToActiveContext {
		name = config.ActiveContext
	}
	if name == "" {
		return nil, fmt.Errorf("cannot find suitable context. Use '--context' or set default via 'context' command")
	}

	for idx, d := range config.Contexts {
		if d.Name == name {
			return &config.Contexts[idx], nil // golang loop reuse same var, don't use "&d"
		}
	}
	return nil, fmt.Errorf("unknown context '%s' in config '%s'", name, configFile)
}

func SetContext(ctxt *Context, failIfNotExist bool) {
	config, _ := ReadConfigFile(true)
	for i, c := range config.Contexts {
		if c.Name == ctxt.Name {
			config.Contexts[i] = *ctxt
			WriteConfigFile(config)
			return
		}
	}
	if failIfNotExist {
		cobra.CheckErr(fmt.Sprintf("attempting to set/update non existing context '%s'", ctxt.Name))
	} else {
		config.Contexts = append(config.Contexts, *ctxt)
		if len(config.Contexts) == 1 {
			config.ActiveContext = ctxt.Name
		}
		WriteConfigFile(config)
	}
}

func ReadConfigFile(createIfNoConfig bool) (config *Config, configFile string) {
	configFile = GetConfigFilePath()
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		if _, ok := err.(*os.PathError); ok {
			if createIfNoConfig {
				config = &Config{Version: "v1"}
				return
			}
			cobra.CheckErr("Config file does not exist. Please create the config file with the context command.")
		} else {
			cobra.CheckErr(fmt.Sprintf("Cannot read config file %s - %v", configFile, err))
		}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		cobra.CheckErr(fmt.Sprintf("problems parsing config file %s - %v", configFile, err))
		return
	}
	config = &cfg
	return
}

func WriteConfigFile(config *Config) {
	b, err := yaml.Marshal(config)
	if err != nil {
		cobra.CheckErr(fmt.Sprintf("cannot marshall content of config file - %v", err))
		return
	}

	configFile := GetConfigFilePath()
	if err = os.WriteFile(configFile, b, fs.FileMode(0600)); err != nil {
		cobra.CheckErr(fmt.Sprintf("cannot write to config file %s - %v", configFile, err))
	}
}

func GetConfigDir(createIfNoExist bool) (configDir string) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		cobra.CheckErr(fmt.Sprintf("Cannot find the user configuration directory - %v", err))
		return
	}
	configDir = userConfigDir + string(os.PathSeparator) + CONFIG_FILE_DIR
	if createIfNoExist {
		err = os.MkdirAll(configDir, 0750)
		if err != nil && !os.IsExist(err) {
			cobra.CheckErr(fmt.Sprintf("Could not create configuration directory %s - %v", configDir, err))
			return
		}
	}
	return
}

func GetConfigFilePath() (path string) {
	return makeConfigFilePath(CONFIG_FILE_NAME)
}

func makeConfigFilePath(fileName string) (path string) {
	configDir := GetConfigDir(true)
	path = configDir + string(os.PathSeparator) + fileName
	return
}

func Logger() *log.Logger {
	return logger
}

func SetLogger(l *log.Logger) {
	logger = l
}
