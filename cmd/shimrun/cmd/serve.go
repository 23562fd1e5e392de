package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shimrun/shimrun/internal/api"
	"github.com/shimrun/shimrun/pkg/shutdown"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local observation API and Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		lifecycleMetrics()

		root := resolvedRoot()
		server := &http.Server{
			Addr:    serveListen,
			Handler: api.NewServer(root, logger).Router(),
		}

		mgr := shutdown.New(10 * time.Second)
		mgr.Register(func(ctx context.Context) error {
			logger.Info("stopping observation server")
			return server.Shutdown(ctx)
		})

		errCh := make(chan error, 1)
		go func() {
			logger.Info("observation server listening", map[string]interface{}{
				"addr": serveListen,
				"root": root,
			})
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		done := make(chan error, 1)
		go func() { done <- mgr.Wait() }()

		select {
		case err := <-errCh:
			return fail(fmt.Errorf("observation server: %w", err))
		case err := <-done:
			if err != nil {
				return fail(err)
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:9921", "address for the observation API")
	rootCmd.AddCommand(serveCmd)
}
