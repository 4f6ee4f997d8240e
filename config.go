package proxyrot

import (
	"fmt"
	"os"
	"time"

	"github.com/grishkovelli/proxyrot/pkg/chainconf"
	"gopkg.in/yaml.v3"
)

// Settings holds the options of the validate-and-rotate tool. YAML keys
// are the long flag names.
type Settings struct {
	// File is the address list, one host:port per line
	File string `yaml:"file" default:"proxy-list.txt" validate:"required"`
	// OutputFile receives the valid addresses when set
	OutputFile string `yaml:"output-file"`
	// Timeout is the probe timeout in seconds
	Timeout int `yaml:"timeout" default:"5" validate:"min=1"`
	// URL is requested through every candidate proxy
	URL string `yaml:"url" default:"http://icanhazip.com" validate:"required"`
	// Workers bounds the number of concurrent probes
	Workers int `yaml:"workers" default:"20" validate:"min=1"`
	// Conf is the proxychains configuration path
	Conf string `yaml:"conf" default:"/etc/proxychains4.conf" validate:"required"`
	// Sleep is the rotation interval in seconds
	Sleep int `yaml:"sleep" default:"60" validate:"min=1"`
	// ProxyType is written in front of every proxy entry
	ProxyType string `yaml:"proxy-type" default:"http"`
	// Strategy is the chain directive activated on every rotation, in any
	// form chainconf.ParseStrategy accepts
	Strategy string `yaml:"strategy" default:"strict_chain"`
	// ProbeScheme is how candidates are spoken to while probing
	ProbeScheme string `yaml:"probe-scheme" default:"http" validate:"oneof=http|socks5"`
	// NoUpdate validates (and exports) only
	NoUpdate bool `yaml:"no-update"`
	// Verbose enables debug logging
	Verbose bool `yaml:"verbose"`
	// Progress draws a progress bar while validating
	Progress bool `yaml:"progress"`
	// StatusAddr serves the status page and websocket when set
	StatusAddr string `yaml:"status-addr"`
}

// DefaultSettings returns Settings with every default applied.
func DefaultSettings() Settings {
	var s Settings
	setDefaultValues(&s)
	return s
}

// LoadSettings reads a YAML settings file into s. Fields named in
// explicit (flags the user gave) are left alone.
func LoadSettings(path string, s *Settings, explicit map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	overlay(s, &file, explicit)
	return nil
}

// Validate fills defaults for empty fields and checks the result.
func (s *Settings) Validate() error {
	setDefaultValues(s)
	if err := validate(s); err != nil {
		return err
	}
	if _, err := chainconf.ParseProxyType(s.ProxyType); err != nil {
		return fmt.Errorf("field %q: %w", "proxy-type", err)
	}
	if _, err := chainconf.ParseStrategy(s.Strategy); err != nil {
		return fmt.Errorf("field %q: %w", "strategy", err)
	}
	return nil
}

func (s *Settings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s *Settings) SleepDuration() time.Duration {
	return time.Duration(s.Sleep) * time.Second
}
