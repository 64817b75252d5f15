// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/unclebandit/relaydesk-backend/internal/config"
	"github.com/unclebandit/relaydesk-backend/internal/controller"
	"github.com/unclebandit/relaydesk-backend/internal/db"
	"github.com/unclebandit/relaydesk-backend/internal/dispatch"
	"github.com/unclebandit/relaydesk-backend/internal/lock"
	"github.com/unclebandit/relaydesk-backend/internal/notify"
	"github.com/unclebandit/relaydesk-backend/internal/provider"
	"github.com/unclebandit/relaydesk-backend/internal/queue"
	"github.com/unclebandit/relaydesk-backend/internal/repository"
	"github.com/unclebandit/relaydesk-backend/internal/service"
	"github.com/unclebandit/relaydesk-backend/internal/webhook"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	// Init DB
	db.Init()
	db.Migrate()

	customerRepo := &repository.CustomerRepository{DB: db.DB}
	conversationRepo := &repository.ConversationRepository{DB: db.DB}
	messageRepo := &repository.MessageRepository{DB: db.DB}
	commentRepo := &repository.CommentRepository{DB: db.DB}
	eventRepo := &repository.AssignmentEventRepository{DB: db.DB}
	notificationRepo := &repository.NotificationRepository{DB: db.DB}
	idempotencyRepo := &repository.IdempotencyRepository{DB: db.DB}
	userRepo := &repository.UserRepository{DB: db.DB}

	hub := notify.NewHub()
	locks := lock.NewKeyedMutex()

	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.ProviderChannelID, cfg.RequestTimeout)
	breaker := dispatch.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	dispatcher := dispatch.NewDispatcher(providerClient, breaker, cfg.RetryBase, cfg.RetryCap, cfg.RetryMaxAttempts)

	notificationService := &service.NotificationService{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Hub:              hub,
	}

	assignmentService := &service.AssignmentService{
		CustomerRepo:  customerRepo,
		UserRepo:      userRepo,
		EventRepo:     eventRepo,
		Notifications: notificationService,
		Dispatcher:    dispatcher,
		Locks:         locks,
		ResyncTopic:   cfg.ResyncQueue,
		LockTimeout:   cfg.LockTimeout,
	}

	// Resync jobs go to RabbitMQ for cmd/worker; without a broker the
	// in-memory queue re-drives them in-process instead.
	if cfg.AMQPURL != "" {
		pub, err := queue.NewAMQPPublisher(cfg.AMQPURL, cfg.ResyncQueue)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ:", err)
		}
		defer pub.Close()
		assignmentService.Queue = pub
	} else {
		log.Println("⚠️ AMQP_URL not set, using in-memory resync queue")
		q := queue.NewInMemoryQueue()
		q.Subscribe(cfg.ResyncQueue, func(payload any) error {
			job, ok := payload.(queue.ResyncJob)
			if !ok {
				return nil
			}
			return assignmentService.Resync(context.Background(), job.CustomerID)
		})
		assignmentService.Queue = q
	}

	messageService := &service.MessageService{
		CustomerRepo:     customerRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		Notifications:    notificationService,
		Dispatcher:       dispatcher,
		Locks:            locks,
		LockTimeout:      cfg.LockTimeout,
	}

	commentService := &service.CommentService{
		CommentRepo:      commentRepo,
		ConversationRepo: conversationRepo,
		CustomerRepo:     customerRepo,
		Notifications:    notificationService,
		Dispatcher:       dispatcher,
	}

	pipeline := &webhook.Pipeline{
		Secret:      []byte(cfg.WebhookSecret),
		Idempotency: idempotencyRepo,
		Messages:    messageService,
		Assignments: assignmentService,
		Timeout:     cfg.IngestTimeout,
	}

	webhookController := &controller.WebhookController{Pipeline: pipeline}
	customerController := &controller.CustomerController{
		CustomerRepo:      customerRepo,
		EventRepo:         eventRepo,
		AssignmentService: assignmentService,
	}
	messageController := &controller.MessageController{
		MessageService: messageService,
		CommentService: commentService,
	}
	notificationController := &controller.NotificationController{
		NotificationRepo: notificationRepo,
		Hub:              hub,
	}

	r := chi.NewRouter()

	// Provider webhooks
	r.Post("/webhook/message", webhookController.Message)
	r.Post("/webhook/assignment", webhookController.Assignment)

	// Customer / assignment routes
	r.Get("/customers", customerController.ListCustomers)
	r.Get("/customers/{id}", customerController.GetCustomer)
	r.Post("/customers/{id}/assign", customerController.AssignCustomer)
	r.Post("/customers/{id}/unassign", customerController.UnassignCustomer)
	r.Get("/customers/{id}/assignments", customerController.AssignmentHistory)

	// Conversation routes
	r.Get("/conversations/{id}/messages", messageController.ListMessages)
	r.Post("/conversations/{id}/messages", messageController.SendMessage)
	r.Get("/conversations/{id}/comments", messageController.ListComments)
	r.Post("/conversations/{id}/comments", messageController.CreateComment)

	// Notification routes
	r.Get("/notifications", notificationController.ListNotifications)
	r.Post("/notifications/{id}/read", notificationController.MarkRead)
	r.Get("/notifications/stream", notificationController.Stream)

	log.Println("🚀 Server running on", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, r))
}
