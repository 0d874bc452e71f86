package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// WebhookIngestor feeds provider push payloads into the ingestion pipeline
type WebhookIngestor interface {
	IngestWebhook(ctx context.Context, providerName string, payload []byte) error
}

// pushEvent is the envelope providers publish to the shared topic. The
// payload travels on to the provider adapter for normalization.
type pushEvent struct {
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload"`
}

// Service subscribes to the Pub/Sub topic providers push message events to
// and routes each event into the ingestion pipeline. Duplicate deliveries
// are harmless; ingestion dedup absorbs them.
type Service struct {
	pubsubClient *pubsub.Client
	ingestor     WebhookIngestor
	topicName    string
	subName      string
}

func NewService(projectID, topicName string, ingestor WebhookIngestor, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		ingestor:     ingestor,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting push listener with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var event pushEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("[PubSub] Failed to unmarshal push event: %v", err)
		return
	}
	if event.Provider == "" {
		log.Printf("[PubSub] Dropping push event with no provider")
		return
	}

	if err := s.ingestor.IngestWebhook(ctx, event.Provider, event.Payload); err != nil {
		log.Printf("[PubSub] Failed to ingest %s push event: %v", event.Provider, err)
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}
