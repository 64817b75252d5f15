// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/unclebandit/relaydesk-backend/internal/config"
	"github.com/unclebandit/relaydesk-backend/internal/db"
	"github.com/unclebandit/relaydesk-backend/internal/dispatch"
	"github.com/unclebandit/relaydesk-backend/internal/lock"
	"github.com/unclebandit/relaydesk-backend/internal/provider"
	"github.com/unclebandit/relaydesk-backend/internal/queue"
	"github.com/unclebandit/relaydesk-backend/internal/repository"
	"github.com/unclebandit/relaydesk-backend/internal/service"
)

// The worker is the resync sweeper: it retries provider syncs for
// customers whose local state diverged from the provider, both from
// queued jobs and from a periodic sweep of the needs_resync flag. It
// never sits on the webhook hot path.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	db.Init()

	customerRepo := &repository.CustomerRepository{DB: db.DB}
	userRepo := &repository.UserRepository{DB: db.DB}
	eventRepo := &repository.AssignmentEventRepository{DB: db.DB}
	notificationRepo := &repository.NotificationRepository{DB: db.DB}

	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.ProviderChannelID, cfg.RequestTimeout)
	breaker := dispatch.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	dispatcher := dispatch.NewDispatcher(providerClient, breaker, cfg.RetryBase, cfg.RetryCap, cfg.RetryMaxAttempts)

	assignmentService := &service.AssignmentService{
		CustomerRepo: customerRepo,
		UserRepo:     userRepo,
		EventRepo:    eventRepo,
		Notifications: &service.NotificationService{
			NotificationRepo: notificationRepo,
			UserRepo:         userRepo,
		},
		Dispatcher:  dispatcher,
		Locks:       lock.NewKeyedMutex(),
		ResyncTopic: cfg.ResyncQueue,
		LockTimeout: cfg.LockTimeout,
	}

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open a channel:", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		cfg.ResyncQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	go func() {
		for d := range msgs {
			var job queue.ResyncJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			err := assignmentService.Resync(context.Background(), job.CustomerID)
			if err != nil {
				log.Println("Failed to resync customer", job.CustomerID, ":", err)
				// A plain requeue would not carry the attempt count, so
				// the job is republished with the header incremented.
				attempts := retryCount(d.Headers)
				if attempts < maxResyncRetries {
					if err := republish(ch, cfg.ResyncQueue, d.Body, attempts+1); err != nil {
						log.Println("⚠️ failed to requeue resync job:", err)
					}
				} else {
					log.Println("⚠️ resync job for customer", job.CustomerID, "exhausted retries; the sweep will pick it up")
				}
			}

			d.Ack(false)
		}
	}()

	// Periodic sweep catches customers whose enqueue failed or whose
	// job was lost; the flag in the database is the source of truth.
	go func() {
		ticker := time.NewTicker(cfg.ResyncInterval)
		defer ticker.Stop()
		for range ticker.C {
			sweep(customerRepo, assignmentService)
		}
	}()

	log.Println("Worker running, waiting for resync jobs...")
	forever := make(chan bool)
	<-forever
}

const maxResyncRetries = 3

// retryCount reads the x-retry-count header. AMQP clients deliver header
// integers in whatever width they marshalled, so every width is accepted.
func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func republish(ch *amqp.Channel, queueName string, body []byte, attempt int) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"x-retry-count": int32(attempt)},
			Body:         body,
		},
	)
}

func sweep(customerRepo repository.CustomerRepositoryInterface, svc *service.AssignmentService) {
	customers, err := customerRepo.ListNeedsResync(100)
	if err != nil {
		log.Println("⚠️ resync sweep query failed:", err)
		return
	}
	for _, c := range customers {
		if err := svc.Resync(context.Background(), c.ID); err != nil {
			log.Println("⚠️ resync failed for customer", c.ID, ":", err)
		} else {
			log.Println("✅ resynced customer", c.ID)
		}
	}
}
