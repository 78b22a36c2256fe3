package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/internal/api"
)

// serveCommand creates the serve command, which runs the HTTP API until
// interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("addr") {
				addr = c.config().Server.Addr
			}

			runner, err := c.newRunner(ctx, runnerOpts{noCache: noCache, history: true})
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer closeRunner(runner)

			srv := api.New(runner, api.Options{Logger: loggerFromContext(ctx)})
			printInfo("Serving on %s", StyleLink.Render("http://"+displayAddr(addr)))
			printDetail("Conversion service: %s", c.config().Service.BaseURL)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8090)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

// displayAddr turns ":8090" into "localhost:8090".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
