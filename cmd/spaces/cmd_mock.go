package main

import (
	"os"
	"os/signal"
	"syscall"

	"spaces-client/internal/mockserver"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var mockAddr string

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory document service for local development",
	Args:  cobra.NoArgs,
	RunE:  runMockServer,
}

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default: MOCK_SERVER_ADDR)")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	addr := mockAddr
	if addr == "" {
		addr = cfg.App.MockServerAddr
	}

	srv := mockserver.New(sysLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		_ = srv.Shutdown()
	}()

	color.Cyan("Mock document service listening on http://%s", addr)
	return srv.Listen(addr)
}
