package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/plancheck/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes drawing checks and rule extraction over HTTP:

  GET  /health             liveness
  GET  /rules?authority=   stored rule set
  GET  /rule-sets          all stored rule sets
  POST /check-drawing      multipart file + authority, or JSON {authority, text}
  POST /extract-from-url   JSON {pdf_url, authority}
  POST /extract-from-file  multipart file + authority
  GET  /metrics            Prometheus metrics

Example:
  plancheck serve --port 3000
  DEV_MODE=true PORT=8080 plancheck serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "listen port (default: server.port)")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		// Checks still work without a model; extraction endpoints answer 503
		fmt.Fprintf(os.Stderr, "Warning: %v (rule extraction disabled)\n", err)
		if a, err = newApp(ctx, false); err != nil {
			return err
		}
	}
	defer a.Close()

	return server.New(a.pipeline, a.metrics, cfg.Server).Run(ctx)
}
