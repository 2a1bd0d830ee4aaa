package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEDIA_DIRECTORY", dir)

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.HTTPAddress)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "dlnacast", cfg.FriendlyName)
	assert.Equal(t, "239.255.255.250:1900", cfg.MulticastGroup())
	assert.Equal(t, dir, cfg.MediaDirectory)
	assert.Equal(t, "ssdp:all", cfg.SearchTarget)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaRenderer:1", cfg.DeviceType)
	assert.Equal(t, 10*time.Second, cfg.SearchWindow)
	assert.Equal(t, time.Second, cfg.ReceiveTimeout)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Advertise)
	assert.Equal(t, "", cfg.MetricsAddr())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("MEDIA_DIRECTORY", t.TempDir())
	t.Setenv("HTTP_ADDRESS", "192.168.1.5")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SEARCH_WINDOW", "3s")
	t.Setenv("SSDP_ADVERTISE", "true")
	t.Setenv("METRICS_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.5:9000", cfg.BaseURL().String())
	assert.Equal(t, ":9000", cfg.ListenAddr())
	assert.Equal(t, 3*time.Second, cfg.SearchWindow)
	assert.True(t, cfg.Advertise)
	assert.Equal(t, ":9100", cfg.MetricsAddr())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoadDotenv(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("DLNA_FRIENDLY_NAME")
		os.Unsetenv("MULTICAST_PORT")
	})

	dir := t.TempDir()
	t.Setenv("MEDIA_DIRECTORY", dir)

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DLNA_FRIENDLY_NAME=Den\nMULTICAST_PORT=1901\n"), 0o644))

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "Den", cfg.FriendlyName)
	assert.Equal(t, 1901, cfg.MulticastPort)

	_, err = Load(nil, filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestLoadOverride(t *testing.T) {
	t.Setenv("MEDIA_DIRECTORY", t.TempDir())

	v := New()
	v.Set("friendly_name", "Kitchen")

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", cfg.FriendlyName)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		HTTPAddress:      "",
		HTTPPort:         70000,
		FriendlyName:     "x",
		MulticastAddress: "10.0.0.1",
		MulticastPort:    1900,
		MediaDirectory:   filepath.Join(t.TempDir(), "missing"),
		SearchWindow:     time.Second,
		ReceiveTimeout:   time.Second,
		LogLevel:         "loud",
	}

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 5)
	assert.True(t, errors.Is(err, ErrMediaDirectory))
	assert.True(t, strings.Contains(err.Error(), "multicast_address"))
}

func TestValidateMediaDirectoryIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))

	t.Setenv("MEDIA_DIRECTORY", f)
	_, err := Load(nil, "")
	assert.True(t, errors.Is(err, ErrMediaDirectory))
}
