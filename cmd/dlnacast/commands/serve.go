package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the media directory until interrupted",
	Long: `Serve the device description and the media directory over HTTP, optionally
advertising the endpoint over SSDP and mDNS, until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("advertise", false, "announce the endpoint over SSDP (env SSDP_ADVERTISE)")
	serveCmd.Flags().Bool("mdns", false, "register the endpoint over mDNS (env MDNS_ANNOUNCE)")
	serveCmd.Flags().Int("metrics-port", 0, "serve Prometheus metrics on this port (env METRICS_PORT)")

	v.BindPFlag("advertise", serveCmd.Flags().Lookup("advertise"))
	v.BindPFlag("mdns", serveCmd.Flags().Lookup("mdns"))
	v.BindPFlag("metrics_port", serveCmd.Flags().Lookup("metrics-port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	errc, err := startServer(srv)
	if err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logrus.Info("Signal received, stopping server")
	}

	if err := shutdown(srv); err != nil {
		return err
	}

	return <-errc
}
