package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NewHTTPServer creates a configured HTTP server
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Write timeout stays unset: the provisioning stream outlives any
		// sane fixed deadline.
		IdleTimeout: 120 * time.Second,
	}
}

// NewHTTPSServerWithConfig creates an HTTPS server with custom TLS configuration
func NewHTTPSServerWithConfig(addr string, certFile, keyFile, minVersion string, handler http.Handler) (*http.Server, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	switch minVersion {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return &http.Server{
		Addr:      addr,
		Handler:   handler,
		TLSConfig: tlsConfig,
	}, nil
}

// GracefulShutdown performs graceful shutdown of the HTTP server
func GracefulShutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// SetupSignalHandler sets up OS signal handling for SIGINT and SIGTERM
func SetupSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// WaitForSignal waits for termination signals and returns the received signal
func WaitForSignal(ch chan os.Signal) os.Signal {
	return <-ch
}
