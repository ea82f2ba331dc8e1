package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kromahlusenii-ops/civic-voices-sub003/config"
	srv "github.com/kromahlusenii-ops/civic-voices-sub003/internal/server"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			s, err := srv.New(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Run(serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
