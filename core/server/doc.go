// Package server provides HTTP server lifecycle management with graceful
// shutdown and TLS configuration helpers, wrapping the standard
// http.Server with functional options.
//
// # Basic Usage
//
//	srv := server.New(":8080", server.WithLogger(logger))
//
//	group, gctx := errgroup.WithContext(ctx)
//	group.Go(srv.Run(gctx, mux))
//	err := group.Wait()
//
// Run blocks until the context is canceled, then performs a graceful
// shutdown bounded by WithShutdownTimeout (default 30s).
//
// # TLS
//
// WithTLS attaches a *tls.Config; see tls.go for preset configurations
// (DefaultTLSConfig, ModernTLSConfig, IntermediateTLSConfig,
// StrictTLSConfig) and NewTLSConfig for building a custom one from
// TLSConfigOption values.
package server
