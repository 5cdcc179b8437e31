package main

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/eringen/photobooth"
	"github.com/eringen/photobooth/compose"
)

func newComposeCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "compose <photo> [photo photo]",
		Short: "Compose image files into a photo strip without the server",
		Long:  `compose reads one or three image files, lays them out with the configured branding and writes the strip to the content directory (or --out).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if !compose.ValidCount(len(args)) {
				return fmt.Errorf("expected 1 or 3 photos, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := photobooth.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			ccfg, err := cfg.ComposeConfig()
			if err != nil {
				return err
			}
			if out != "" {
				ccfg.ContentDir = out
			}

			imgs := make([]image.Image, len(args))
			for i, path := range args {
				img, err := imaging.Open(path, imaging.AutoOrientation(true))
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				imgs[i] = img
			}

			p, err := compose.New(ccfg, compose.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			res, err := p.ComposeImages(cmd.Context(), imgs)
			if err != nil {
				return err
			}
			opts.logger.Info("strip composed", "file", res.Filename, "size", fmt.Sprintf("%dx%d", res.Width, res.Height))
			fmt.Fprintln(cmd.OutOrStdout(), res.Filename)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default: content_dir)")
	return cmd
}
