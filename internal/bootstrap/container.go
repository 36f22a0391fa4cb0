package bootstrap

import (
	"context"
	"log"
	"time"

	"subscription-mailer-be/internal/config"
	"subscription-mailer-be/internal/controller"
	"subscription-mailer-be/internal/pkg/distlock"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/mailer"
	"subscription-mailer-be/internal/pkg/productlink"
	"subscription-mailer-be/internal/repository/contract"
	"subscription-mailer-be/internal/repository/filestore"
	"subscription-mailer-be/internal/repository/implementation"
	"subscription-mailer-be/internal/repository/memory"
	"subscription-mailer-be/internal/service"
	"subscription-mailer-be/internal/source/stripe"
	"subscription-mailer-be/pkg/notify"

	pktNats "subscription-mailer-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const ObservationTopic = "subscription.observations"

type Container struct {
	// Controllers
	SubscriptionController controller.SubscriptionController

	// Core
	Logger  logger.ILogger
	Tracker service.ITrackerService

	// Background Services (Exposed for main.go to run)
	ObservationBus      service.IObservationBus
	SnapshotPoller      service.ISnapshotPoller // nil without a Stripe key
	Snapshots           service.SnapshotSource  // nil without a Stripe key
	CSVWatcher          service.ICSVWatcher     // nil when disabled
	NotificationService *service.NotificationService

	closers []func()
}

// NewContainer wires every component from cfg. db is only used when the
// tracker store is "gorm" and may be nil otherwise.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c.Logger = sysLogger
	c.closers = append(c.closers, func() { _ = sysLogger.Sync() })

	emailService := mailer.NewEmailService(mailer.Config{
		Host:          cfg.SMTP.Host,
		Port:          cfg.SMTP.Port,
		Username:      cfg.SMTP.Email,
		Password:      cfg.SMTP.Password,
		Bcc:           cfg.SMTP.Bcc,
		TestRecipient: cfg.SMTP.TestRecipient,
		MinInterval:   cfg.SMTP.MinInterval,
	}, sysLogger)

	products := productlink.NewMapper(cfg.Products.BaseURL, cfg.Products.DefaultLink, productlink.DefaultMappings)

	// 2. Infrastructure
	// NATS
	var (
		publisher notify.Publisher = notify.NoopPublisher{}
		natsSub   *pktNats.Subscriber
	)
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			publisher = notify.NewNatsPublisher(natsPub, sysLogger)
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// Redis
	trackerOpts := []service.TrackerOption{service.WithPublisher(publisher)}
	if lock, rdb := newDistributedLock(context.Background(), cfg.Tracker); lock != nil {
		trackerOpts = append(trackerOpts, service.WithDistributedLock(lock, cfg.Tracker.LockWait))
		c.closers = append(c.closers, closeRedis(rdb))
	}

	// 3. Services
	c.Tracker = service.NewTrackerService(
		newRecordRepository(db, cfg),
		filestore.NewSendLogExporter(cfg.Tracker.ExportPath),
		sysLogger,
		trackerOpts...,
	)
	delivery := service.NewDeliveryService(c.Tracker, emailService, products, sysLogger)

	// Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	c.ObservationBus = service.NewObservationBus(pubSub, ObservationTopic, delivery, sysLogger)

	if cfg.Stripe.SecretKey != "" {
		fetcher := stripe.NewFetcher(cfg.Stripe.SecretKey, sysLogger)
		c.Snapshots = fetcher
		c.SnapshotPoller = service.NewSnapshotPoller(fetcher, c.Tracker, c.ObservationBus, publisher, cfg.Stripe.SnapshotPath, sysLogger)
	} else {
		log.Println("[INFO] STRIPE_SECRET_KEY not set, Stripe polling disabled")
	}

	if cfg.Watcher.Enabled {
		c.CSVWatcher = service.NewCSVWatcher(cfg.Stripe.SnapshotPath, c.ObservationBus, sysLogger)
	}

	if natsSub != nil {
		c.NotificationService = service.NewNotificationService(natsSub, emailService, cfg.App.AdminNotifyEmail, sysLogger)
	}

	// 4. Controllers
	c.SubscriptionController = controller.NewSubscriptionController(c.Tracker, delivery, c.SnapshotPoller, products, sysLogger)

	return c
}

func newRecordRepository(db *gorm.DB, cfg *config.Config) contract.SubscriptionRecordRepository {
	switch cfg.Tracker.Store {
	case "gorm":
		if db == nil {
			log.Fatal("[FATAL] TRACKER_STORE=gorm needs DB_CONNECTION_STRING")
		}
		log.Println("[INFO] Using Subscription Store: POSTGRES")
		return implementation.NewSubscriptionRecordRepository(db)
	case "memory":
		log.Println("[INFO] Using Subscription Store: MEMORY (records are lost on exit)")
		return memory.NewSubscriptionRecordRepository()
	default:
		log.Printf("[INFO] Using Subscription Store: FILE (%s)", cfg.Tracker.LogPath)
		return filestore.NewSubscriptionRecordRepository(cfg.Tracker.LogPath)
	}
}

// newDistributedLock returns nil when REDIS_URL is unset, unparsable or
// unreachable at startup; the tracker then locks in-process only.
func newDistributedLock(ctx context.Context, cfg config.TrackerConfig) (distlock.DistLock, *redis.Client) {
	rdb, err := distlock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("[WARN] %v. Falling back to in-process locking", err)
		return nil, nil
	}
	if rdb == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Falling back to in-process locking", err)
		_ = rdb.Close()
		return nil, nil
	}

	log.Println("[INFO] Using distributed lock: REDIS")
	return distlock.NewRedisLock(rdb, cfg.LockKey, cfg.LockTTL), rdb
}

func closeRedis(rdb *redis.Client) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis: %v", err)
		}
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
