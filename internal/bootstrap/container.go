package bootstrap

import (
	"context"
	"time"

	"spaces-client/internal/config"
	"spaces-client/internal/conversation"
	"spaces-client/internal/gateway"
	"spaces-client/internal/notification"
	"spaces-client/internal/pkg/logger"
	"spaces-client/internal/repository/memory"
	"spaces-client/internal/tracer"
	"spaces-client/internal/upload"
	"spaces-client/internal/workspace"

	pktNats "spaces-client/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	sessionTTL             = time.Hour
	sessionCleanupInterval = 10 * time.Minute
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	Gateway       *gateway.Client
	Workspace     *workspace.Store
	Uploads       *upload.Manager
	Conversations *conversation.Manager

	// Bus carries every notification on notification.Topic.
	Bus           *gochannel.GoChannel
	Notifications notification.Sink

	natsPub         *pktNats.Publisher
	unsubscribe     func()
	shutdownTracing tracer.ShutdownFunc
}

// NewContainer wires the client. Extra sinks receive every notification in
// addition to the log, the bus and NATS.
func NewContainer(cfg *config.Config, sysLogger logger.ILogger, extra ...notification.Sink) (*Container, error) {
	// 1. Tracing
	shutdownTracing := tracer.InitTracer(cfg.Tracing, sysLogger)

	// 2. Notification bus. Publishing waits for subscribers to ack, so a
	// renderer has shown a notification before the operation returns.
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		},
		watermillLogger,
	)

	sinks := notification.Fanout{
		notification.NewLogSink(sysLogger),
		notification.NewBusSink(pubSub, notification.Topic, sysLogger),
	}

	var natsPub *pktNats.Publisher
	if cfg.Events.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.Events.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS, notifications stay local", map[string]interface{}{"error": err.Error()})
		} else {
			natsPub = pub
			sinks = append(sinks, notification.NewEventSink(natsPub, sysLogger))
		}
	}
	sinks = append(sinks, extra...)

	// 3. Gateway
	client := gateway.NewClient(cfg.Remote.BaseURL, cfg.Remote.RequestTimeout, sysLogger)

	// 4. Components
	store := workspace.NewStore(client, sinks, sysLogger)
	uploads := upload.NewManager(client, store, sinks, sysLogger, cfg.Upload.MaxUploadSize)

	repo := memory.NewSessionRepository[*conversation.Session](sessionTTL, sessionCleanupInterval)
	conversations, err := conversation.NewManager(client, sinks, sysLogger, repo, conversation.Options{
		Model:      cfg.Chat.DefaultModel,
		Location:   cfg.Chat.Location(),
		SpaceFiles: store.FileNames,
	})
	if err != nil {
		_ = pubSub.Close()
		if natsPub != nil {
			natsPub.Close()
		}
		_ = shutdownTracing(context.Background())
		return nil, err
	}
	unsubscribe := store.Subscribe(conversations.OnSelectionChanged)

	return &Container{
		Config:          cfg,
		Logger:          sysLogger,
		Gateway:         client,
		Workspace:       store,
		Uploads:         uploads,
		Conversations:   conversations,
		Bus:             pubSub,
		Notifications:   sinks,
		natsPub:         natsPub,
		unsubscribe:     unsubscribe,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close stops background work in reverse wiring order.
func (c *Container) Close(ctx context.Context) error {
	c.unsubscribe()
	c.Conversations.Close()

	err := c.Bus.Close()
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if shutdownErr := c.shutdownTracing(ctx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	_ = c.Logger.Sync()
	return err
}
