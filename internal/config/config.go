// Package config loads the bridge configuration from a YAML file and the
// environment. Environment variables win over the file.
//
// File lookup order:
//  1. the path given on the command line
//  2. $NMEA_BRIDGE_CONFIG
//  3. ./nmea-bridge.yaml
//
// A missing file is not an error; defaults apply.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "NMEA_BRIDGE_CONFIG"
	DefaultFileName = "nmea-bridge.yaml"
)

// Transport modes.
const (
	ModeDial   = "dial"
	ModeListen = "listen"
	ModeUDP    = "udp"
)

type Config struct {
	NMEA      NMEAConfig          `yaml:"nmea"`
	Vessel    VesselConfig        `yaml:"vessel"`
	Topic     TopicConfig         `yaml:"topic"`
	Sentences map[string]Duration `yaml:"sentences"`
	NATS      NATSConfig          `yaml:"nats"`
	Redis     RedisConfig         `yaml:"redis"`
	GRPC      GRPCConfig          `yaml:"grpc"`
	Link      LinkConfig          `yaml:"link"`
	WebSocket WebSocketConfig     `yaml:"websocket"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Capture   CaptureConfig       `yaml:"capture"`
	Log       LogConfig           `yaml:"log"`
}

// NMEAConfig describes where sentences come from.
type NMEAConfig struct {
	Mode        string   `yaml:"mode"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	ReadTimeout Duration `yaml:"read_timeout"`
	RetryWait   Duration `yaml:"retry_wait"`
}

type VesselConfig struct {
	// MMSI seeds every session until an identifying sentence arrives.
	MMSI string `yaml:"mmsi"`
}

type TopicConfig struct {
	Namespace string `yaml:"namespace"`
	Fallback  string `yaml:"fallback"`
}

type NATSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Name      string `yaml:"name"`
	JetStream bool   `yaml:"jetstream"`
	// Stream is created or updated on start when JetStream is on.
	Stream string `yaml:"stream"`
}

type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr"`
	DB        int      `yaml:"db"`
	LatestTTL Duration `yaml:"latest_ttl"`
}

type GRPCConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Server    string   `yaml:"server"`
	Timeout   Duration `yaml:"timeout"`
	QueueSize int      `yaml:"queue_size"`
}

type LinkConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr"`
	RetryWait Duration `yaml:"retry_wait"`
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

type CaptureConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration reads Go duration strings such as "10s" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func DefaultConfig() *Config {
	return &Config{
		NMEA: NMEAConfig{
			Mode:      ModeDial,
			Host:      "localhost",
			Port:      10110,
			RetryWait: Duration(5 * time.Second),
		},
		Topic: TopicConfig{Namespace: "nmea", Fallback: "unknown"},
		NATS: NATSConfig{
			Enabled: true,
			URL:     "nats://localhost:4222",
			Name:    "nmea-bridge",
			Stream:  "NMEA",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			LatestTTL: Duration(10 * time.Minute),
		},
		GRPC: GRPCConfig{
			Server:    "localhost:50051",
			Timeout:   Duration(5 * time.Second),
			QueueSize: 1024,
		},
		Link: LinkConfig{
			Addr:      "localhost:7000",
			RetryWait: Duration(5 * time.Second),
		},
		WebSocket: WebSocketConfig{Addr: ":8080", Path: "/ws"},
		Metrics:   MetricsConfig{Enabled: true, Port: "9000"},
		Capture:   CaptureConfig{Dir: "logs"},
		Log:       LogConfig{Level: "info"},
	}
}

// FindConfigPath returns the first candidate file that exists, or "".
func FindConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	return ""
}

// Load reads the file found by FindConfigPath, applies environment
// overrides and validates the result.
func Load(flagPath string) (*Config, error) {
	cfg := DefaultConfig()
	path := FindConfigPath(flagPath)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && flagPath == "":
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.NMEA.Host = getEnv("NMEA_HOST", c.NMEA.Host)
	c.NMEA.Mode = getEnv("NMEA_MODE", c.NMEA.Mode)
	if v := getEnv("NMEA_PORT", ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NMEA_PORT: %w", err)
		}
		c.NMEA.Port = port
	}
	if v := getEnv("NATS_URL", ""); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	if v := getEnv("REDIS_ADDR", ""); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getEnv("GRPC_SERVER", ""); v != "" {
		c.GRPC.Server = v
		c.GRPC.Enabled = true
	}
	c.Metrics.Port = getEnv("METRICS_PORT", c.Metrics.Port)
	c.Topic.Namespace = getEnv("TOPIC_NAMESPACE", c.Topic.Namespace)
	c.Vessel.MMSI = getEnv("VESSEL_MMSI", c.Vessel.MMSI)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.NMEA.Mode == "" {
		c.NMEA.Mode = def.NMEA.Mode
	}
	c.NMEA.Mode = strings.ToLower(c.NMEA.Mode)
	if c.NMEA.RetryWait <= 0 {
		c.NMEA.RetryWait = def.NMEA.RetryWait
	}
	if c.Topic.Namespace == "" {
		c.Topic.Namespace = def.Topic.Namespace
	}
	if c.Topic.Fallback == "" {
		c.Topic.Fallback = def.Topic.Fallback
	}
	if c.GRPC.Timeout <= 0 {
		c.GRPC.Timeout = def.GRPC.Timeout
	}
	if c.GRPC.QueueSize <= 0 {
		c.GRPC.QueueSize = def.GRPC.QueueSize
	}
	if c.Link.RetryWait <= 0 {
		c.Link.RetryWait = def.Link.RetryWait
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = def.WebSocket.Path
	}
	if c.Capture.Dir == "" {
		c.Capture.Dir = def.Capture.Dir
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.NMEA.Mode {
	case ModeDial, ModeListen, ModeUDP:
	default:
		return fmt.Errorf("nmea.mode %q: want dial, listen or udp", c.NMEA.Mode)
	}
	if c.NMEA.Port < 1 || c.NMEA.Port > 65535 {
		return fmt.Errorf("nmea.port %d out of range", c.NMEA.Port)
	}
	if c.NMEA.ReadTimeout < 0 {
		return errors.New("nmea.read_timeout is negative")
	}
	if err := checkSegment("topic.namespace", c.Topic.Namespace); err != nil {
		return err
	}
	if err := checkSegment("topic.fallback", c.Topic.Fallback); err != nil {
		return err
	}
	for tag, iv := range c.Sentences {
		if iv < 0 {
			return fmt.Errorf("sentences.%s: negative interval", tag)
		}
	}
	if !c.NATS.Enabled && !c.Redis.Enabled && !c.GRPC.Enabled && !c.Link.Enabled && !c.WebSocket.Enabled {
		return errors.New("no sink enabled: enable at least one of nats, redis, grpc, link, websocket")
	}
	return nil
}

func checkSegment(name, s string) error {
	if strings.ContainsAny(s, "/+# \t\r\n") {
		return fmt.Errorf("%s %q must not contain '/', '+', '#' or whitespace", name, s)
	}
	return nil
}

// Tags returns the requested sentence types, upper case and sorted.
// An empty result means every supported type.
func (c *Config) Tags() []string {
	tags := make([]string, 0, len(c.Sentences))
	for tag := range c.Sentences {
		tags = append(tags, strings.ToUpper(strings.TrimSpace(tag)))
	}
	sort.Strings(tags)
	return tags
}

// Intervals returns the per-type publish intervals, keyed by upper case tag.
func (c *Config) Intervals() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Sentences))
	for tag, iv := range c.Sentences {
		if iv > 0 {
			out[strings.ToUpper(strings.TrimSpace(tag))] = iv.Duration()
		}
	}
	return out
}

// Address joins host and port for the NMEA transport.
func (c *Config) Address() string {
	return net.JoinHostPort(c.NMEA.Host, strconv.Itoa(c.NMEA.Port))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
