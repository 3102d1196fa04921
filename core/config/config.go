package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
)

// Color settings.
const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt       string `json:"prompt"`
	CustomPrompt bool   `json:"custom_prompt"`

	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=0"`

	Color       string  `json:"color" validate:"oneof=always auto never"`
	AnomalyRate float64 `json:"anomaly_rate" validate:"gte=1"`
	AppLog      string  `json:"app_log"`

	Aliases map[string]string `json:"aliases" validate:"dive,keys,required,endkeys,required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewMemMapFs()
	}
	return c.configFs
}

// UseColor decides whether output should be colored given whether it goes to
// a terminal.
func (c *Configuration) UseColor(terminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return terminal
	}
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	if c.AppLog == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.AppLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadAppLog opens the application log for reading.
func (c *Configuration) ReadAppLog() (afero.File, error) {
	if c.AppLog == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.AppLog, os.O_RDONLY, 0600)
}

// ReadHistory opens the history file for reading.
func (c *Configuration) ReadHistory() (afero.File, error) {
	if c.HistoryFile == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().Open(c.HistoryFile)
}

// WriteHistory truncates and opens the history file for writing.
func (c *Configuration) WriteHistory() (afero.File, error) {
	if c.HistoryFile == "" {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.HistoryFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
}

// Default returns the built-in configuration, backed by an in-memory
// filesystem.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewMemMapFs()
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
