package main

//
// Serve subcommand
//

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/ooni/geoquery/internal/lookupd"
	"github.com/ooni/geoquery/internal/metricsx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// serveOptions contains the serve subcommand options.
type serveOptions struct {
	APIEndpoint        string
	PrometheusEndpoint string
}

func newServeCommand(globalOptions *Options) *cobra.Command {
	options := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the lookup API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMain(globalOptions, options)
		},
	}
	cmd.Flags().StringVar(&options.APIEndpoint, "endpoint", "127.0.0.1:8080", "API endpoint")
	cmd.Flags().StringVar(&options.PrometheusEndpoint, "prometheus", "127.0.0.1:9091", "Prometheus endpoint")
	return cmd
}

// shutdown calls srv.Shutdown with a reasonably long timeout, so that we
// serve pending requests while still eventually shutting down the server.
func shutdown(srv *http.Server, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func serveMain(globalOptions *Options, options *serveOptions) error {
	eng, err := newEngine(globalOptions)
	if err != nil {
		return err
	}
	defer eng.Close()

	// export the engine metrics along with the handler metrics
	prometheus.MustRegister(metricsx.NewCollector("geoquery", eng))

	// create a listening server for serving lookups
	srv := &http.Server{
		Addr:              options.APIEndpoint,
		Handler:           lookupd.NewServeMux(log.Log, eng),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", options.APIEndpoint)
	if err != nil {
		return err
	}
	log.Infof("serving lookups at http://%s/lookup", listener.Addr().String())
	go srv.Serve(listener)

	// create another server for serving prometheus metrics
	promMux := http.NewServeMux()
	promMux.Handle("/metrics", promhttp.Handler())
	promSrv := &http.Server{
		Addr:              options.PrometheusEndpoint,
		Handler:           promMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go promSrv.ListenAndServe()
	log.Infof("serving prometheus metrics at http://%s/metrics", options.PrometheusEndpoint)

	// await for a signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("interrupted by signal: %v", sig)

	// shutdown the servers awaiting for pending requests
	log.Infof("waiting for pending requests to complete")
	shutdownWg := &sync.WaitGroup{}
	shutdownWg.Add(2)
	go shutdown(srv, shutdownWg)
	go shutdown(promSrv, shutdownWg)
	shutdownWg.Wait()

	log.Info(eng.Metrics().String())
	return nil
}
