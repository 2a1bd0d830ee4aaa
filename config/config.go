// Package config loads the settings shared by every dlnacast command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ericyan/iputil"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is built once at startup and shared read-only afterwards.
type Config struct {
	HTTPAddress      string        `mapstructure:"http_address"`
	HTTPPort         int           `mapstructure:"http_port"`
	FriendlyName     string        `mapstructure:"friendly_name"`
	MulticastAddress string        `mapstructure:"multicast_address"`
	MulticastPort    int           `mapstructure:"multicast_port"`
	MediaDirectory   string        `mapstructure:"media_directory"`
	SearchTarget     string        `mapstructure:"search_target"`
	DeviceType       string        `mapstructure:"device_type"`
	SearchWindow     time.Duration `mapstructure:"search_window"`
	ReceiveTimeout   time.Duration `mapstructure:"receive_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	Interface        string        `mapstructure:"interface"`
	Advertise        bool          `mapstructure:"advertise"`
	MDNS             bool          `mapstructure:"mdns"`
	MetricsPort      int           `mapstructure:"metrics_port"`
	LogLevel         string        `mapstructure:"log_level"`
}

// ErrMediaDirectory is returned when the media directory is unusable.
var ErrMediaDirectory = errors.New("media directory must be an existing directory")

type setting struct {
	key string
	env string
	def interface{}
}

var settings = []setting{
	{"http_address", "HTTP_ADDRESS", defaultHost()},
	{"http_port", "HTTP_PORT", 8080},
	{"friendly_name", "DLNA_FRIENDLY_NAME", "dlnacast"},
	{"multicast_address", "MULTICAST_ADDRESS", "239.255.255.250"},
	{"multicast_port", "MULTICAST_PORT", 1900},
	{"media_directory", "MEDIA_DIRECTORY", "./media"},
	{"search_target", "SEARCH_TARGET", "ssdp:all"},
	{"device_type", "DEVICE_TYPE", "urn:schemas-upnp-org:device:MediaRenderer:1"},
	{"search_window", "SEARCH_WINDOW", 10 * time.Second},
	{"receive_timeout", "RECEIVE_TIMEOUT", time.Second},
	{"request_timeout", "REQUEST_TIMEOUT", 10 * time.Second},
	{"interface", "SSDP_INTERFACE", ""},
	{"advertise", "SSDP_ADVERTISE", false},
	{"mdns", "MDNS_ANNOUNCE", false},
	{"metrics_port", "METRICS_PORT", 0},
	{"log_level", "LOG_LEVEL", "info"},
}

func defaultHost() string {
	if addr, _ := iputil.DefaultIPv4(); addr != nil {
		return addr.IP.String()
	}

	return "localhost"
}

// New returns a viper instance with the defaults and environment
// bindings of every setting. Commands bind their flags to it before
// calling Load.
func New() *viper.Viper {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		v.BindEnv(s.key, s.env)
	}

	return v
}

// Load reads the dotenv file at path into the environment and returns the
// validated configuration. An empty path reads .env from the working
// directory if there is one.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if v == nil {
		v = New()
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var result *multierror.Error

	if cfg.HTTPAddress == "" {
		result = multierror.Append(result, errors.New("http_address is empty"))
	}
	if !validPort(cfg.HTTPPort) {
		result = multierror.Append(result, fmt.Errorf("http_port %d out of range", cfg.HTTPPort))
	}
	if cfg.FriendlyName == "" {
		result = multierror.Append(result, errors.New("friendly_name is empty"))
	}
	if ip := net.ParseIP(cfg.MulticastAddress); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		result = multierror.Append(result, fmt.Errorf("multicast_address %q is not an IPv4 multicast address", cfg.MulticastAddress))
	}
	if !validPort(cfg.MulticastPort) {
		result = multierror.Append(result, fmt.Errorf("multicast_port %d out of range", cfg.MulticastPort))
	}
	if fi, err := os.Stat(cfg.MediaDirectory); err != nil || !fi.IsDir() {
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrMediaDirectory, cfg.MediaDirectory))
	}
	if cfg.SearchWindow <= 0 {
		result = multierror.Append(result, errors.New("search_window must be positive"))
	}
	if cfg.ReceiveTimeout <= 0 {
		result = multierror.Append(result, errors.New("receive_timeout must be positive"))
	}
	if cfg.RequestTimeout < 0 {
		result = multierror.Append(result, errors.New("request_timeout must not be negative"))
	}
	if cfg.MetricsPort != 0 && !validPort(cfg.MetricsPort) {
		result = multierror.Append(result, fmt.Errorf("metrics_port %d out of range", cfg.MetricsPort))
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}

// ListenAddr is the address the media endpoint binds.
func (cfg *Config) ListenAddr() string {
	return ":" + strconv.Itoa(cfg.HTTPPort)
}

// BaseURL is the address renderers fetch media from. It is the only
// source of the media URL host.
func (cfg *Config) BaseURL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.HTTPAddress, strconv.Itoa(cfg.HTTPPort)),
	}
}

// MulticastGroup is the SSDP group in "host:port" form.
func (cfg *Config) MulticastGroup() string {
	return net.JoinHostPort(cfg.MulticastAddress, strconv.Itoa(cfg.MulticastPort))
}

// MetricsAddr is the address metrics are served on, or "" if disabled.
func (cfg *Config) MetricsAddr() string {
	if cfg.MetricsPort == 0 {
		return ""
	}

	return ":" + strconv.Itoa(cfg.MetricsPort)
}

// Level returns the configured log level.
func (cfg *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
