package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/dmdmdm-nz/keventd/internal/kevent"
)

// Config holds the application configuration from the config file and CLI flags
type Config struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"logLevel"`
	Protocols    string `yaml:"protocols"`
	ResolveLinks bool   `yaml:"resolveLinks"`
}

var DefaultConfig = Config{
	Host:      "127.0.0.1",
	Port:      60110,
	LogLevel:  "info",
	Protocols: "route,uevent",
}

func (c *Config) UnmarshalYAML(b []byte) error {
	// Needed to break recursive calls into UnmarshalYAML
	type config Config

	def := config(DefaultConfig)

	if err := yaml.Unmarshal(b, &def); err != nil {
		return err
	}

	*c = Config(def)

	return nil
}

// ProtocolSet parses the configured protocol list.
func (c *Config) ProtocolSet() (kevent.ProtocolSet, error) {
	return kevent.ParseProtocolSet(c.Protocols)
}

// String returns a string representation of the Config
func (c Config) String() string {
	return fmt.Sprintf("Host: %s, Port: %d, LogLevel: %s, Protocols: %s, ResolveLinks: %t",
		c.Host, c.Port, c.LogLevel, c.Protocols, c.ResolveLinks)
}

func ReadConf(path string) (*Config, error) {
	r, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the configuration file: %w", err)
	}

	conf := Config{}
	if err := yaml.Unmarshal(r, &conf); err != nil {
		return nil, fmt.Errorf("error unmarshaling the configuration: %w", err)
	}

	return &conf, nil
}
