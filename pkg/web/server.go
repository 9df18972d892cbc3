package web

import (
	"context"
	"crypto/tls"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"net/http"
	"scadabridge/cmd/bridge/config"
	"scadabridge/cmd/bridge/options"
	"scadabridge/pkg/device"
	"scadabridge/pkg/generic"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, o *options.Options, config *config.Config) (*Server, error) {
	s := &generic.Server{
		Router: router,
		Port:   o.Port,
	}

	server := &Server{
		Server: s,
		Config: config,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	api := s.Router.Group("/api")
	device.InstallHandler(api, s.Config.ActionMgr)
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	s.Config.Poller.Start()

	var srv *http.Server
	if len(s.Config.CertFile) != 0 && len(s.Config.KeyFile) != 0 {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Config.CertFile, s.Config.KeyFile)
		if err != nil {
			return nil, err
		}
		c := &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}

		srv = &http.Server{
			Addr:      s.Addr(),
			Handler:   s.Router,
			TLSConfig: c,
		}
		go func() {
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "HTTPS server stopped")
			}
		}()
	} else {
		srv = &http.Server{
			Addr:    s.Addr(),
			Handler: s.Router,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				klog.ErrorS(err, "HTTP server stopped")
			}
		}()
	}

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown HTTP server")
		}
		// actions in flight are done, the poller can release the devices
		if err := s.Config.Poller.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown poller")
		}
		s.Config.Publisher.Close()
	}, nil
}
