package config

import (
	"context"
	"os"
	"time"

	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

var (
	errInitiate           = "config: initiate '%s' error"
	errLoadFromEnvFile    = "config: load from env file error"
	errLoadFromEnv        = "config: load from env error"
	errLoadFromConfigFile = "config: load from config file error"
	errLoadFromConfigPath = "config: load from config path error"
)

type Type uint

const (
	Invalid Type = iota
	String
	Bool
	Int
	Int64
	Float64
	Time
	Duration
	StringSlice
	StringMap
	StringMapString
)

type Option struct {
	Type           Type        `structs:"type"`
	Default        interface{} `structs:"default"`
	EnvironmentKey string      `structs:"environment_key"`
}

// NewConfig returns a Config backed by the viper provider.
func NewConfig(ctx context.Context) (*Config, error) {
	c := &Config{
		options: make(map[string]Option),
	}
	err := Register("viper", NewViperHandler)
	if err != nil {
		return nil, errors.Annotatef(err, errInitiate, "viper")
	}
	err = c.Use(ctx, "viper")
	if err != nil {
		return nil, err
	}
	return c, nil
}

type Config struct {
	Provider string
	handler  Handler

	options               map[string]Option
	bindedEnvironmentKeys []string
}

func (c *Config) GetProvider() string {
	return c.Provider
}

func (c *Config) Use(ctx context.Context, Provider string) error {
	handler, err := Use(Provider)
	if err != nil {
		return err
	}
	c.Provider = Provider
	c.handler = handler()
	err = c.handler.Initiate(ctx)
	if err != nil {
		return errors.Annotatef(err, errInitiate, c.Provider)
	}
	return nil
}

func (c *Config) AddConfigPath(in string) {
	c.handler.AddConfigPath(in)
}

func (c *Config) ConfigFileUsed() string {
	return c.handler.ConfigFileUsed()
}

func (c *Config) SetEnvPrefix(in string) {
	c.handler.SetEnvPrefix(in)
}

// SetOptions registers options once by key and applies their defaults.
func (c *Config) SetOptions(options map[string]Option) error {
	for key, option := range options {
		if key == "" {
			continue
		}
		if _, ok := c.options[key]; !ok {
			c.options[key] = option
		}
		if option.Default != nil {
			c.handler.SetDefault(key, option.Default)
		}
	}
	return nil
}

// Options describes the registered options, keyed by option name.
func (c *Config) Options() map[string]interface{} {
	options := make(map[string]interface{}, len(c.options))
	for key, option := range c.options {
		options[key] = structs.Map(option)
	}
	return options
}

func (c *Config) LoadFromConfigPath(configName string) error {
	c.handler.SetConfigName(configName)
	err := c.handler.ReadInConfig()
	if err != nil {
		return errors.Annotatef(err, errLoadFromConfigPath)
	}
	return nil
}

func (c *Config) LoadFromConfigFile(configFile string) error {
	c.handler.SetConfigFile(configFile)
	err := c.handler.ReadInConfig()
	if err != nil {
		return errors.Annotatef(err, errLoadFromConfigFile)
	}
	return nil
}

func (c *Config) BindedEnvironmentKeys() []string {
	return c.bindedEnvironmentKeys
}

func (c *Config) LoadFromEnv() error {
	for key, option := range c.options {
		if option.EnvironmentKey != "" {
			err := c.handler.BindEnv(key, option.EnvironmentKey)
			if err != nil {
				return errors.Annotatef(err, errLoadFromEnv+": [key:'%s', env_key:'%s']", key, option.EnvironmentKey)
			}
			c.bindedEnvironmentKeys = append(c.bindedEnvironmentKeys, option.EnvironmentKey)
		}
	}
	return nil
}

// LoadFromEnvFile loads dotEnvFile into the environment, without
// overriding variables already set, and binds the options to it.
func (c *Config) LoadFromEnvFile(dotEnvFile string) error {
	if dotEnvFile != "" {
		_, err := os.Stat(dotEnvFile)
		if err != nil {
			return errors.Annotatef(err, errLoadFromEnvFile)
		}
		err = godotenv.Load(dotEnvFile)
		if err != nil {
			return errors.Annotatef(err, errLoadFromEnvFile)
		}
	}
	err := c.LoadFromEnv()
	if err != nil {
		return errors.Annotatef(err, errLoadFromEnvFile)
	}
	return nil
}

func (c *Config) Set(key string, value interface{}) {
	c.handler.Set(key, value)
}

func (c *Config) Get(key string) interface{} {
	return c.handler.Get(key)
}

func (c *Config) IsSet(key string) bool {
	return c.handler.IsSet(key)
}

// GetString returns the value associated with the key as a string.
func (c *Config) GetString(key string) string {
	return c.handler.GetString(key)
}

// GetBool returns the value associated with the key as a boolean.
func (c *Config) GetBool(key string) bool {
	return c.handler.GetBool(key)
}

// GetInt returns the value associated with the key as an integer.
func (c *Config) GetInt(key string) int {
	return c.handler.GetInt(key)
}

// GetInt64 returns the value associated with the key as an integer.
func (c *Config) GetInt64(key string) int64 {
	return c.handler.GetInt64(key)
}

// GetFloat64 returns the value associated with the key as a float64.
func (c *Config) GetFloat64(key string) float64 {
	return c.handler.GetFloat64(key)
}

// GetTime returns the value associated with the key as time.
func (c *Config) GetTime(key string) time.Time {
	return c.handler.GetTime(key)
}

// GetDuration returns the value associated with the key as a duration.
func (c *Config) GetDuration(key string) time.Duration {
	return c.handler.GetDuration(key)
}

// GetStringSlice returns the value associated with the key as a slice of strings.
func (c *Config) GetStringSlice(key string) []string {
	return c.handler.GetStringSlice(key)
}

// GetStringMap returns the value associated with the key as a map of interfaces.
func (c *Config) GetStringMap(key string) map[string]interface{} {
	return c.handler.GetStringMap(key)
}

// GetStringMapString returns the value associated with the key as a map of strings.
func (c *Config) GetStringMapString(key string) map[string]string {
	return c.handler.GetStringMapString(key)
}

func (c *Config) GetAll() map[string]interface{} {
	return c.handler.AllSettings()
}

type configHandler func() Handler

var configHandlers = make(map[string]configHandler)

func Register(name string, configHandler configHandler) error {
	if configHandler == nil {
		return errors.New("config: Register config is nil")
	}
	if _, ok := configHandlers[name]; !ok {
		configHandlers[name] = configHandler
	}
	return nil
}

func Use(name string) (configHandler, error) {
	if _, exist := configHandlers[name]; !exist {
		return nil, errors.New("config: unknown config " + name + " (forgotten register?)")
	}
	return configHandlers[name], nil
}

type Handler interface {
	Initiate(ctx context.Context) error
	AddConfigPath(in string)
	SetConfigName(in string)
	SetConfigFile(in string)
	ConfigFileUsed() string
	SetDefault(key string, value interface{})
	BindEnv(input ...string) error
	SetEnvPrefix(in string)
	ReadInConfig() error
	AllSettings() map[string]interface{}
	Set(key string, value interface{})
	Get(key string) interface{}
	IsSet(key string) bool
	// GetString returns the value associated with the key as a string.
	GetString(key string) string
	// GetBool returns the value associated with the key as a boolean.
	GetBool(key string) bool
	// GetInt returns the value associated with the key as an integer.
	GetInt(key string) int
	// GetInt64 returns the value associated with the key as an integer.
	GetInt64(key string) int64
	// GetFloat64 returns the value associated with the key as a float64.
	GetFloat64(key string) float64
	// GetTime returns the value associated with the key as time.
	GetTime(key string) time.Time
	// GetDuration returns the value associated with the key as a duration.
	GetDuration(key string) time.Duration
	// GetStringSlice returns the value associated with the key as a slice of strings.
	GetStringSlice(key string) []string
	// GetStringMap returns the value associated with the key as a map of interfaces.
	GetStringMap(key string) map[string]interface{}
	// GetStringMapString returns the value associated with the key as a map of strings.
	GetStringMapString(key string) map[string]string
}
