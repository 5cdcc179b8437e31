package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/photobooth"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the photobooth HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(opts.configPath, addr)
			if err != nil {
				return err
			}

			app, err := photobooth.New(cfg, photobooth.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			opts.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// loadServeConfig applies the --addr flag before defaults are filled so
// the share-link base URL follows it.
func loadServeConfig(path, addr string) (photobooth.Config, error) {
	return photobooth.LoadConfig(path, func(c *photobooth.Config) {
		if addr != "" {
			c.Addr = addr
		}
	})
}
