package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ericyan/dlnacast"
	"github.com/ericyan/dlnacast/config"
	"github.com/ericyan/dlnacast/upnp"
	"github.com/ericyan/dlnacast/upnp/av"
)

var castCmd = &cobra.Command{
	Use:   "cast",
	Short: "Pick a renderer and a media file and start playback",
	Long: `Serve the media directory, search for renderers, then ask which renderer
should play which file. The media stays available until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runCast,
}

var errNoRenderer = errors.New("no renderer found")

func runCast(cmd *cobra.Command, args []string) error {
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

	castErr := castFlow(ctx, cmd, cfg)
	if castErr == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop serving.")

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
	}

	if err := shutdown(srv); err != nil {
		logrus.WithError(err).Warn("Media endpoint did not shut down cleanly")
	}
	if err := <-errc; err != nil && castErr == nil {
		return err
	}

	if errors.Is(castErr, context.Canceled) {
		return nil
	}
	return castErr
}

// castFlow runs discovery, asks for the renderer and the media, then
// casts.
func castFlow(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	fmt.Fprintf(out, "Searching for renderers for %s...\n", cfg.SearchWindow)
	devices, err := upnp.Discover(ctx, searchOptions(cfg))
	if err != nil {
		return err
	}

	renderers := make([]upnp.DiscoveredDevice, 0, len(devices))
	for _, dev := range devices {
		if dev.Location != nil {
			renderers = append(renderers, dev)
		}
	}
	if len(renderers) == 0 {
		return errNoRenderer
	}

	descs := describeAll(ctx, renderers, cfg.RequestTimeout)

	options := make([]string, len(renderers))
	for i, dev := range renderers {
		options[i] = rendererLabel(dev, descs[i])
	}

	i, err := p.choose(ctx, "Renderers:", options)
	if err != nil {
		return err
	}
	renderer, desc := renderers[i], descs[i]

	files := dlnacast.ListMedia(cfg.MediaDirectory)
	if len(files) == 0 {
		return fmt.Errorf("no playable media in %s", cfg.MediaDirectory)
	}

	options = make([]string, len(files))
	for i, f := range files {
		options[i] = mediaLabel(f)
	}

	i, err = p.choose(ctx, "Media:", options)
	if err != nil {
		return err
	}
	media := files[i]

	ep := av.ResolveEndpoints(desc, renderer.Location)
	mediaURL := media.URL(cfg.BaseURL())

	caster := av.NewCaster(cleanhttp.DefaultPooledClient(), logrus.StandardLogger())
	caster.Timeout = cfg.RequestTimeout

	if err := caster.Cast(ctx, ep, media, mediaURL); err != nil {
		var castErr *av.CastError
		if errors.As(err, &castErr) && len(castErr.Body) > 0 {
			logrus.WithField("stage", castErr.Stage).Errorf("Renderer response: %s", castErr.Body)
		}
		return err
	}

	fmt.Fprintf(out, "Playing %s on %s.\n", media.Name, displayName(desc, renderer))
	return nil
}

func rendererLabel(dev upnp.DiscoveredDevice, desc *upnp.DeviceDescription) string {
	if desc == nil {
		return dev.Location.String()
	}

	label := desc.FriendlyName
	if desc.Manufacturer != "" || desc.ModelName != "" {
		label += fmt.Sprintf(" (%s %s)", desc.Manufacturer, desc.ModelName)
	}

	return label + " " + dev.Location.Host
}

func displayName(desc *upnp.DeviceDescription, dev upnp.DiscoveredDevice) string {
	if desc != nil && desc.FriendlyName != "" {
		return desc.FriendlyName
	}

	return dev.Location.Host
}

func mediaLabel(f dlnacast.MediaFile) string {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return f.Name
	}

	return fmt.Sprintf("%s (%s)", f.Name, humanize.Bytes(uint64(fi.Size())))
}
