package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ericyan/dlnacast/config"
	"github.com/ericyan/dlnacast/upnp"
)

// shutdownTimeout bounds the graceful shutdown of the media endpoint.
const shutdownTimeout = 5 * time.Second

var (
	v       = config.New()
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "dlnacast",
	Short: "Cast local media files to DLNA renderers",
	Long: `dlnacast discovers DLNA media renderers on the local network and makes one of
them play a file from the media directory, which it serves over HTTP.

Without a subcommand it runs the interactive cast flow.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCast,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env if present)")
	flags.String("log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	flags.String("media-dir", "", "directory of the media files to serve (env MEDIA_DIRECTORY)")
	flags.String("address", "", "address renderers reach this host on (env HTTP_ADDRESS)")
	flags.Int("port", 0, "port of the media endpoint (env HTTP_PORT)")
	flags.String("interface", "", "network interface used for SSDP (env SSDP_INTERFACE)")

	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("media_directory", flags.Lookup("media-dir"))
	v.BindPFlag("http_address", flags.Lookup("address"))
	v.BindPFlag("http_port", flags.Lookup("port"))
	v.BindPFlag("interface", flags.Lookup("interface"))

	rootCmd.AddCommand(castCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the configuration and sets up logging accordingly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, envFile)
	if err != nil {
		return nil, err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(cfg.Level())

	return cfg, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func searchOptions(cfg *config.Config) upnp.SearchOptions {
	return upnp.SearchOptions{
		Address:        cfg.MulticastAddress,
		Port:           cfg.MulticastPort,
		SearchTarget:   cfg.SearchTarget,
		DeviceType:     cfg.DeviceType,
		Window:         cfg.SearchWindow,
		ReceiveTimeout: cfg.ReceiveTimeout,
		Interface:      cfg.Interface,
		Log:            logrus.StandardLogger(),
	}
}

func newServer(cfg *config.Config) (*upnp.Server, error) {
	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, err
		}
	}

	return upnp.NewServer(upnp.ServerOptions{
		ListenAddr:     cfg.ListenAddr(),
		BaseURL:        cfg.BaseURL(),
		MediaDir:       cfg.MediaDirectory,
		Device:         upnp.NewDevice(cfg.FriendlyName),
		Advertise:      cfg.Advertise,
		MulticastGroup: cfg.MulticastGroup(),
		Interface:      ifi,
		MDNS:           cfg.MDNS,
		MetricsAddr:    cfg.MetricsAddr(),
		Log:            logrus.StandardLogger(),
	})
}

// startServer binds srv and runs it in the background. The returned
// channel yields the result of ListenAndServe.
func startServer(srv *upnp.Server) (<-chan error, error) {
	if err := srv.Listen(); err != nil {
		return nil, fmt.Errorf("media endpoint: %w", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	return errc, nil
}

func shutdown(srv *upnp.Server) error {
	logrus.Info("Shutting down media endpoint")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(ctx)
}
