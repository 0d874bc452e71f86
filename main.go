package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	api "unibox-backend/cmd/api"
	accountdomain "unibox-backend/internal/account/domain"
	accountRepo "unibox-backend/internal/account/repository"
	accountUsecase "unibox-backend/internal/account/usecase"
	billingdomain "unibox-backend/internal/billing/domain"
	billingRepo "unibox-backend/internal/billing/repository"
	billingUsecase "unibox-backend/internal/billing/usecase"
	messagedomain "unibox-backend/internal/message/domain"
	messageRepo "unibox-backend/internal/message/repository"
	messageUsecase "unibox-backend/internal/message/usecase"
	"unibox-backend/internal/notification"
	notificationdomain "unibox-backend/internal/notification/domain"
	notificationRepo "unibox-backend/internal/notification/repository"
	"unibox-backend/internal/sync/scheduler"
	syncUsecase "unibox-backend/internal/sync/usecase"
	"unibox-backend/pkg/config"
	"unibox-backend/pkg/database"
	"unibox-backend/pkg/fcm"
	"unibox-backend/pkg/provider"
	"unibox-backend/pkg/provider/chatrelay"
	"unibox-backend/pkg/provider/mailbridge"
	"unibox-backend/pkg/provider/smsgate"
	"unibox-backend/pkg/ratelimit"
	"unibox-backend/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&accountdomain.Account{},
		&messagedomain.Message{},
		&messagedomain.Contact{},
		&messagedomain.ContactAddress{},
		&messagedomain.Conversation{},
		&billingdomain.Organization{},
		&billingdomain.Subscription{},
		&billingdomain.Usage{},
		&notificationdomain.DeviceToken{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)
	messageRepository := messageRepo.NewMessageRepository(db)
	contactRepository := messageRepo.NewContactRepository(db)
	conversationRepository := messageRepo.NewConversationRepository(db)
	subscriptionRepository := billingRepo.NewSubscriptionRepository(db)
	usageRepository := billingRepo.NewUsageRepository(db)
	deviceTokenRepository := notificationRepo.NewDeviceTokenRepository(db)

	// Shared rate-limit coordinator for expensive provider calls
	coordinator := ratelimit.NewCoordinator(cfg.CoordinatorWaitTimeout)

	// Register provider adapters
	httpClient := &http.Client{Timeout: 30 * time.Second}
	registry := provider.NewRegistry()
	registry.Register(smsgate.NewAdapter(httpClient))
	registry.Register(chatrelay.NewAdapter(cfg.ChatRelayClientID, cfg.ChatRelayClientSecret, httpClient, coordinator))
	registry.Register(mailbridge.NewAdapter())

	// Initialize SSE Manager
	sseManager := sse.NewManager()

	// Initialize use cases (dependency injection)
	quotaGate := billingUsecase.NewQuotaGate(subscriptionRepository, usageRepository, accountRepository)
	messageUc := messageUsecase.NewMessageUsecase(messageRepository, contactRepository, conversationRepository, accountRepository, quotaGate, registry)
	accountUc := accountUsecase.NewAccountUsecase(accountRepository, messageRepository, conversationRepository, quotaGate, registry)
	syncUc := syncUsecase.NewSyncUsecase(accountRepository, messageUc, quotaGate, registry, syncUsecase.NewRunRegistry(), cfg.SyncPageSize, cfg.AccountSyncTimeout, cfg.SweepConcurrency)

	// Initialize FCM Client (optional, realtime SSE works without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
			fcmClient = nil
		}
	}
	messageUc.SetEventService(notification.NewNotifier(sseManager, fcmClient, deviceTokenRepository))

	// Initialize Pub/Sub push listener
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, messageUc, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize push listener: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, push listener disabled")
	}

	// Start background sync sweep
	syncScheduler := scheduler.NewScheduler(syncUc, cfg.SyncInterval)
	syncScheduler.Start()
	defer syncScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(accountUc, messageUc, syncUc, sseManager, deviceTokenRepository, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
