package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only HTTP API",
	Long: `Serve stored sessions, a live event stream and Prometheus metrics over
HTTP.

Examples:
  # Start with the configured address (default 127.0.0.1:8080)
  helix serve

  # Start on a custom host and port
  helix serve --host 0.0.0.0 --port 3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default: server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default: server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	host := a.cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := a.cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	srv := newAPIServer(a)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
	return srv.ListenAndServe(ctx, addr)
}

func newAPIServer(a *app) *api.Server {
	return api.NewServer(a.store,
		api.WithLogger(a.logger),
		api.WithEventBus(a.bus),
		api.WithGatherer(a.registry),
		api.WithRegisterer(a.registry),
		api.WithCORSOrigins(a.cfg.Server.CORSOrigins),
	)
}

