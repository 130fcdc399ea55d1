package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"spaces-client/internal/bootstrap"
	"spaces-client/internal/config"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	spaceName string
	fileName  string
	modelName string

	cfg       *config.Config
	sysLogger *logger.ZapLogger
	container *bootstrap.Container

	stopRenderer func()
)

var rootCmd = &cobra.Command{
	Use:   "spaces",
	Short: "Terminal client for document spaces",
	Long: `spaces talks to a document-workspace service: create spaces, upload
PDFs into them, index them and chat with a model grounded in a space or
a single file.

The service address comes from SPACES_BASE_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		sysLogger = logger.NewFileLogger(cfg.App.LogFilePath)
		if cmd == mockServerCmd {
			return nil
		}

		var err error
		container, err = bootstrap.NewContainer(cfg, sysLogger)
		if err != nil {
			return fmt.Errorf("failed to start client: %w", err)
		}
		if modelName != "" {
			if err := container.Conversations.SetModel(modelName); err != nil {
				return err
			}
		}
		stopRenderer = startRenderer(container)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if stopRenderer != nil {
			stopRenderer()
		}
		if container != nil {
			return container.Close(context.Background())
		}
		if sysLogger != nil {
			_ = sysLogger.Sync()
		}
		return nil
	},
}

// startRenderer prints every notification from the bus until stopped.
func startRenderer(c *bootstrap.Container) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notification.Listen(ctx, c.Bus, notification.Topic, renderNotification); err != nil {
			c.Logger.Warn("CLI", "Notification listener stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func renderNotification(n notification.Notification) {
	switch n.Level {
	case notification.LevelSuccess:
		color.Green("✔ %s", n.Message)
	case notification.LevelWarning:
		color.Yellow("! %s", n.Message)
	case notification.LevelError:
		color.Red("✖ %s", n.Message)
	default:
		color.Cyan("%s", n.Message)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&spaceName, "space", "s", "", "Space to work in (default: first space)")
	rootCmd.PersistentFlags().StringVarP(&fileName, "file", "f", "", "File inside the space (default: whole space)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Chat model (llama3, mistral, gemma2, phi3)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mockServerCmd)
}

func main() {
	cfg = config.Load()
	indexCmd.Hidden = !cfg.App.AdminMode

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
