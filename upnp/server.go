package upnp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ericyan/dlnacast/upnp/internal/ssdp"
)

// ServerOptions configures the media endpoint and its companions.
type ServerOptions struct {
	// ListenAddr is the address the HTTP server binds, e.g. ":8080".
	ListenAddr string
	// BaseURL is the address devices reach the HTTP server on.
	BaseURL *url.URL
	MediaDir string
	Device   *Device

	// Advertise announces Device over SSDP on MulticastGroup.
	Advertise      bool
	MulticastGroup string
	Interface      *net.Interface

	// MDNS registers the HTTP server as a DNS-SD _http._tcp service.
	MDNS bool

	// MetricsAddr is where Prometheus metrics are served. Empty disables
	// metrics.
	MetricsAddr string

	Log logrus.FieldLogger
}

// Server runs the media endpoint together with the optional SSDP
// advertiser, mDNS registration and metrics listener.
type Server struct {
	opts ServerOptions
	log  logrus.FieldLogger

	hs *http.Server
	ss *ssdp.Server
	ms *http.Server

	mu       sync.Mutex
	hl, ml   net.Listener
	mdns     shutdowner
	stopping bool
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.BaseURL == nil {
		return nil, errors.New("upnp: BaseURL is required")
	}
	if opts.Device == nil {
		return nil, errors.New("upnp: Device is required")
	}
	if opts.MulticastGroup == "" {
		opts.MulticastGroup = ssdp.HostPort(ssdp.DefaultAddr, ssdp.DefaultPort)
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	srv := &Server{opts: opts, log: opts.Log}

	var m *Metrics
	if opts.MetricsAddr != "" {
		m = NewMetrics()

		r := chi.NewRouter()
		r.Handle("/metrics", m.Handler())
		srv.ms = &http.Server{Addr: opts.MetricsAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	}

	srv.hs = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           NewHandler(opts.Device, opts.MediaDir, m, opts.Log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if opts.Advertise {
		ss, err := ssdp.NewServer(opts.Device, srv.DescriptionURL(), opts.MulticastGroup, opts.Interface, opts.Log)
		if err != nil {
			return nil, err
		}
		srv.ss = ss
	}

	return srv, nil
}

// DescriptionURL returns the URL of the served device description.
func (srv *Server) DescriptionURL() *url.URL {
	return srv.opts.BaseURL.JoinPath(descriptionRoute)
}

// Listen binds the HTTP and metrics listeners. Calling it before
// ListenAndServe surfaces bind errors up front, while nothing has been
// told to fetch from the endpoint yet.
func (srv *Server) Listen() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.stopping {
		return http.ErrServerClosed
	}
	if srv.hl != nil {
		return nil
	}

	hl, err := net.Listen("tcp", srv.opts.ListenAddr)
	if err != nil {
		return err
	}

	if srv.ms != nil {
		ml, err := net.Listen("tcp", srv.opts.MetricsAddr)
		if err != nil {
			hl.Close()
			return err
		}
		srv.ml = ml
	}
	srv.hl = hl

	return nil
}

// Addr returns the address the media endpoint is bound to, or nil before
// Listen.
func (srv *Server) Addr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.hl == nil {
		return nil
	}
	return srv.hl.Addr()
}

func (srv *Server) ListenAndServe() error {
	if err := srv.Listen(); err != nil {
		return ignoreClosed(err)
	}

	srv.mu.Lock()
	hl, ml := srv.hl, srv.ml
	srv.mu.Unlock()

	var g errgroup.Group

	g.Go(func() error {
		srv.log.WithFields(logrus.Fields{
			"addr": hl.Addr().String(),
			"url":  srv.opts.BaseURL.String(),
			"dir":  srv.opts.MediaDir,
		}).Info("Media endpoint listening")

		return ignoreClosed(srv.hs.Serve(hl))
	})

	if srv.ss != nil {
		g.Go(srv.ss.ListenAndServe)
	}

	if ml != nil {
		g.Go(func() error {
			srv.log.WithField("addr", ml.Addr().String()).Info("Metrics listening")
			return ignoreClosed(srv.ms.Serve(ml))
		})
	}

	if srv.opts.MDNS {
		if err := srv.registerMDNS(); err != nil {
			srv.log.WithError(err).Warn("Failed to register mDNS service")
		}
	}

	return g.Wait()
}

type shutdowner interface {
	Shutdown()
}

var registerService = func(instance, service string, port int, txt []string, ifaces []net.Interface) (shutdowner, error) {
	return zeroconf.Register(instance, service, "local.", port, txt, ifaces)
}

func (srv *Server) registerMDNS() error {
	port, err := strconv.Atoi(srv.opts.BaseURL.Port())
	if err != nil {
		return err
	}

	var ifaces []net.Interface
	if srv.opts.Interface != nil {
		ifaces = []net.Interface{*srv.opts.Interface}
	}

	s, err := registerService(srv.opts.Device.Name, "_http._tcp", port, []string{"path=" + descriptionRoute}, ifaces)
	if err != nil {
		return err
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.stopping {
		s.Shutdown()
		return nil
	}
	srv.mdns = s

	srv.log.WithField("instance", srv.opts.Device.Name).Info("Registered mDNS service")
	return nil
}

// Shutdown gracefully stops all components, waiting for in-flight
// requests until ctx is done.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.mu.Lock()
	srv.stopping = true
	// Listeners that were bound but never served are not tracked by
	// http.Server.
	for _, l := range []net.Listener{srv.hl, srv.ml} {
		if l != nil {
			l.Close()
		}
	}
	if srv.mdns != nil {
		srv.mdns.Shutdown()
		srv.mdns = nil
	}
	srv.mu.Unlock()

	var g errgroup.Group

	g.Go(func() error { return srv.hs.Shutdown(ctx) })
	if srv.ss != nil {
		g.Go(srv.ss.Close)
	}
	if srv.ms != nil {
		g.Go(func() error { return srv.ms.Shutdown(ctx) })
	}

	return g.Wait()
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}
