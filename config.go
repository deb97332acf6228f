package rtspviewer

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfischer54/rtsp-viewer/internal/graph"
	"github.com/pfischer54/rtsp-viewer/internal/hwctx"
)

// StreamConfig describes one stream. It is treated as immutable once passed to
// NewPlayer.
type StreamConfig struct {
	// URL is the rtsp:// (or rtsps://, rtspt://) location
	URL string `yaml:"url"`
	// LatencyMS is the jitter buffer window
	LatencyMS uint `yaml:"latency_ms"`
	// Transport is the allowed lower transports
	Transport TransportMode `yaml:"transport"`
	// Retry is the number of UDP packet retries before trying the next transport
	Retry uint `yaml:"retry"`
	// Timeout is the UDP receive timeout before falling back to TCP
	Timeout time.Duration `yaml:"timeout"`
	// UDPBufferSize is the kernel receive buffer size in bytes
	UDPBufferSize int `yaml:"udp_buffer_size"`
	// PortRange is the client port range, e.g. "5000-5010"
	PortRange string `yaml:"port_range"`
	// Decoder selects the fallback policy
	Decoder DecoderPreference `yaml:"decoder"`
	// Sinks overrides the software tier sink priority list
	Sinks []string `yaml:"sinks,omitempty"`
	// HardwareDevice is the VAAPI render node
	HardwareDevice string `yaml:"hardware_device"`
}

// DefaultConfig returns the low-latency defaults. URL is left empty.
func DefaultConfig() StreamConfig {
	return StreamConfig{
		LatencyMS:      10,
		Transport:      TransportBoth,
		Retry:          3,
		Timeout:        5 * time.Second,
		UDPBufferSize:  2 * 1024 * 1024,
		PortRange:      "5000-5010",
		Decoder:        DecoderHardware,
		HardwareDevice: hwctx.DefaultDevice,
	}
}

// LoadConfig reads a YAML file and validates it. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (StreamConfig, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return StreamConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return StreamConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ReadConfig is LoadConfig without validation, for callers that apply
// overrides first.
func ReadConfig(path string) (StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StreamConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StreamConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the config. It does not touch the network or the engine.
func (c StreamConfig) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("invalid url: %w", err))
	} else {
		switch u.Scheme {
		case "rtsp", "rtsps", "rtspt", "rtsph":
		default:
			errs = append(errs, fmt.Errorf("unsupported url scheme %q (want rtsp)", u.Scheme))
		}
		if u.Host == "" {
			errs = append(errs, errors.New("url has no host"))
		}
	}

	if c.Transport&(TransportUDP|TransportUDPMulticast|TransportTCP) == 0 {
		errs = append(errs, errors.New("transport must allow udp, udp-mcast or tcp"))
	}
	if c.Transport&^(TransportUDP|TransportUDPMulticast|TransportTCP) != 0 {
		errs = append(errs, fmt.Errorf("invalid transport mask 0x%x", uint(c.Transport)))
	}

	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.UDPBufferSize < 0 {
		errs = append(errs, fmt.Errorf("udp_buffer_size must not be negative, got %d", c.UDPBufferSize))
	}

	if c.PortRange != "" {
		if err := validatePortRange(c.PortRange); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Decoder < DecoderHardware || c.Decoder > DecoderAuto {
		errs = append(errs, fmt.Errorf("invalid decoder preference %d", c.Decoder))
	}

	for i, s := range c.Sinks {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("sinks[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

func validatePortRange(r string) error {
	lo, hi, ok := strings.Cut(r, "-")
	if !ok {
		return fmt.Errorf("invalid port_range %q (want min-max)", r)
	}
	first, err := strconv.ParseUint(lo, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port_range %q: %w", r, err)
	}
	last, err := strconv.ParseUint(hi, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port_range %q: %w", r, err)
	}
	if first == 0 || first > last {
		return fmt.Errorf("invalid port_range %q (min must be in 1..max)", r)
	}
	return nil
}

func (c StreamConfig) settings() graph.Settings {
	return graph.Settings{
		URL:           c.URL,
		LatencyMS:     c.LatencyMS,
		Protocols:     uint(c.Transport),
		Retry:         c.Retry,
		Timeout:       c.Timeout,
		UDPBufferSize: c.UDPBufferSize,
		PortRange:     c.PortRange,
	}
}
