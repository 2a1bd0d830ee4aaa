package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ericyan/dlnacast/upnp"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the renderers answering an SSDP search",
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

var describeDevices bool

func init() {
	discoverCmd.Flags().BoolVarP(&describeDevices, "describe", "d", false, "fetch the description of every device")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	devices, err := upnp.Discover(ctx, searchOptions(cfg))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	var descs []*upnp.DeviceDescription
	if describeDevices {
		descs = describeAll(ctx, devices, cfg.RequestTimeout)
	}

	printDevices(cmd.OutOrStdout(), devices, descs)
	return nil
}

func printDevices(w io.Writer, devices []upnp.DiscoveredDevice, descs []*upnp.DeviceDescription) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tNAME\tUSN\tLOCATION")
	for i, dev := range devices {
		name := "-"
		if i < len(descs) && descs[i] != nil {
			name = descs[i].FriendlyName
		}

		location := "-"
		if dev.Location != nil {
			location = dev.Location.String()
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, name, dev.USN, location)
	}
}

// describeAll fetches the description of every device, one after the
// other. Devices that cannot be described get a nil entry.
func describeAll(ctx context.Context, devices []upnp.DiscoveredDevice, timeout time.Duration) []*upnp.DeviceDescription {
	client := cleanhttp.DefaultPooledClient()
	defer client.CloseIdleConnections()

	descs := make([]*upnp.DeviceDescription, len(devices))
	for i, dev := range devices {
		if dev.Location == nil {
			continue
		}

		desc, err := describe(ctx, client, dev.Location.String(), timeout)
		if err != nil {
			logrus.WithError(err).WithField("location", dev.Location).Warn("Cannot describe device")
			continue
		}
		descs[i] = desc
	}

	return descs
}
