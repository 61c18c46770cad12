package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/devsel/internal/device"
)

// Serial line defaults.
const (
	defaultSpeed    = 9600
	defaultDataBits = 8
	defaultParity   = "none"
	defaultStopBits = 1
)

// Config is the decoded comm section of one device.
type Config struct {
	Serial *SerialConfig `yaml:"serial"`
	TCP    *TCPConfig    `yaml:"tcp"`
	Probe  ProbeConfig   `yaml:"probe"`
}

// SerialConfig describes a serial line.
type SerialConfig struct {
	Port     string  `yaml:"port"`
	Speed    int     `yaml:"speed"`
	DataBits int     `yaml:"data_bits"`
	Parity   string  `yaml:"parity"`
	StopBits float64 `yaml:"stop_bits"`
	Timeout  Timeout `yaml:"timeout"`
}

// TCPConfig describes a network-attached serial bridge (ser2net, esp-link).
type TCPConfig struct {
	Host    string  `yaml:"host"`
	Port    int     `yaml:"port"`
	Timeout Timeout `yaml:"timeout"`
}

// ProbeConfig is the optional liveness handshake. With both fields empty a
// channel that opens counts as live.
type ProbeConfig struct {
	Send   string `yaml:"send"`
	Expect string `yaml:"expect"`
}

// Timeout is a duration that decodes from "2s" style strings or from a bare
// number of seconds.
type Timeout time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Timeout) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("timeout must be a scalar, got %s", nodeKind(value.Kind))
	}
	if d, err := time.ParseDuration(value.Value); err == nil {
		*t = Timeout(d)
		return nil
	}
	secs, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return fmt.Errorf("invalid timeout %q", value.Value)
	}
	*t = Timeout(secs * float64(time.Second))
	return nil
}

// Duration returns t as a time.Duration.
func (t Timeout) Duration() time.Duration { return time.Duration(t) }

// Decode reads a comm section into a Config, applying serial defaults and
// validating the result.
func Decode(comm device.Section) (Config, error) {
	var cfg Config
	if len(comm) == 0 {
		return cfg, ErrNoChannel
	}

	// The section is a generic mapping; a yaml round trip gives typed fields.
	data, err := yaml.Marshal(map[string]any(comm))
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial == nil {
		return
	}
	if c.Serial.Speed == 0 {
		c.Serial.Speed = defaultSpeed
	}
	if c.Serial.DataBits == 0 {
		c.Serial.DataBits = defaultDataBits
	}
	if c.Serial.Parity == "" {
		c.Serial.Parity = defaultParity
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = defaultStopBits
	}
}

// Validate checks the configuration for errors.
// It returns ErrNoChannel when no channel is configured, otherwise all
// problems joined under ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Serial == nil && c.TCP == nil {
		return ErrNoChannel
	}

	var errs []error
	if s := c.Serial; s != nil {
		if s.Port == "" {
			errs = append(errs, errors.New("serial.port is required"))
		}
		if s.Speed < 0 {
			errs = append(errs, fmt.Errorf("serial.speed must be positive, got %d", s.Speed))
		}
		if s.DataBits < 5 || s.DataBits > 8 {
			errs = append(errs, fmt.Errorf("serial.data_bits must be 5-8, got %d", s.DataBits))
		}
		if _, err := parseParity(s.Parity); err != nil {
			errs = append(errs, err)
		}
		if _, err := parseStopBits(s.StopBits); err != nil {
			errs = append(errs, err)
		}
		if s.Timeout < 0 {
			errs = append(errs, errors.New("serial.timeout must not be negative"))
		}
	}
	if t := c.TCP; t != nil && c.Serial == nil {
		if t.Host == "" {
			errs = append(errs, errors.New("tcp.host is required"))
		}
		if t.Port < 1 || t.Port > 65535 {
			errs = append(errs, fmt.Errorf("tcp.port must be 1-65535, got %d", t.Port))
		}
		if t.Timeout < 0 {
			errs = append(errs, errors.New("tcp.timeout must not be negative"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Channel names the channel a session will use: "serial" or "tcp".
func (c Config) Channel() string {
	if c.Serial != nil {
		return "serial"
	}
	return "tcp"
}

// Address is the port name or host:port the session will open.
func (c Config) Address() string {
	if c.Serial != nil {
		return c.Serial.Port
	}
	if c.TCP != nil {
		return hostPort(c.TCP.Host, c.TCP.Port)
	}
	return ""
}

// timeout returns the channel's own timeout, or fallback when unset.
func (c Config) timeout(fallback time.Duration) time.Duration {
	var t Timeout
	switch {
	case c.Serial != nil:
		t = c.Serial.Timeout
	case c.TCP != nil:
		t = c.TCP.Timeout
	}
	if t > 0 {
		return t.Duration()
	}
	return fallback
}

// mode converts a validated serial config into a serial.Mode.
func (s SerialConfig) mode() *serial.Mode {
	parity, _ := parseParity(s.Parity)
	stopBits, _ := parseStopBits(s.StopBits)
	return &serial.Mode{
		BaudRate: s.Speed,
		DataBits: s.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}
}

func parseParity(p string) (serial.Parity, error) {
	switch strings.ToLower(p) {
	case "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("serial.parity %q is not one of none, odd, even, mark, space", p)
	}
}

func parseStopBits(v float64) (serial.StopBits, error) {
	switch v {
	case 1:
		return serial.OneStopBit, nil
	case 1.5:
		return serial.OnePointFiveStopBits, nil
	case 2:
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("serial.stop_bits must be 1, 1.5 or 2, got %g", v)
	}
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	default:
		return "node"
	}
}
