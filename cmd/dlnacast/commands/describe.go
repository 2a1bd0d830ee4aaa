package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericyan/dlnacast/upnp"
)

var describeCmd = &cobra.Command{
	Use:   "describe <location>",
	Short: "Fetch and print a device description",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	desc, err := describe(ctx, nil, args[0], cfg.RequestTimeout)
	if err != nil {
		return err
	}

	printDescription(cmd.OutOrStdout(), desc)
	return nil
}

func describe(ctx context.Context, client *http.Client, location string, timeout time.Duration) (*upnp.DeviceDescription, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return upnp.FetchDescription(ctx, client, location)
}

func printDescription(w io.Writer, desc *upnp.DeviceDescription) {
	fmt.Fprintf(w, "Name:         %s\n", desc.FriendlyName)
	fmt.Fprintf(w, "Manufacturer: %s\n", desc.Manufacturer)
	fmt.Fprintf(w, "Model:        %s\n", desc.ModelName)
	fmt.Fprintf(w, "UDN:          %s\n", desc.UDN)

	if len(desc.Services) == 0 {
		fmt.Fprintln(w, "Services:     none")
		return
	}

	fmt.Fprintln(w, "Services:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, svc := range desc.Services {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", svc.ServiceType, svc.ControlURL, svc.SCPDURL)
	}
}
