package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/infra/mongodb"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StatusEvent mirrors the payload published on the anchor_events exchange.
type StatusEvent struct {
	TransactionID string                 `json:"transactionId"`
	Status        string                 `json:"status"`
	Stage         string                 `json:"stage,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Message       string                 `json:"message,omitempty"`
	UserMessage   string                 `json:"userMessage,omitempty"`
	LedgerTxHash  string                 `json:"ledgerTxHash,omitempty"`
	BankResponse  map[string]interface{} `json:"bankResponse,omitempty"`
}

const (
	deliveryTimeout  = 5 * time.Second
	deliveryAttempts = 3
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		zlog.Warn().Msg(".env not found, using system environment")
	}

	mongoURI := getenv("MONGO_URI", "mongodb://"+getenv("MONGO_USER", "anchor")+":"+getenv("MONGO_PASS", "secret123")+"@localhost:27017")
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(mongoURI))
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not create MongoDB client")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("could not disconnect MongoDB")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		zlog.Fatal().Err(err).Msg("could not ping MongoDB")
	}
	zlog.Info().Msg("connected to MongoDB")
	auditRepo := mongodb.NewAuditRepository(mongoClient, getenv("MONGO_DB", "anchor_audit"))

	rabbitURL := "amqp://" + getenv("RABBITMQ_USER", "guest") + ":" + getenv("RABBITMQ_PASS", "guest") + "@" + getenv("RABBITMQ_HOST", "localhost") + ":5672/"
	conn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "WalletNotifier_Consumer",
		},
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not open channel")
	}
	defer ch.Close()

	// One unacked message at a time keeps delivery ordered per queue and the
	// retry loop simple.
	if err := ch.Qos(1, 0, false); err != nil {
		zlog.Fatal().Err(err).Msg("could not configure QoS")
	}

	err = ch.ExchangeDeclare(
		"anchor_events", // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not declare exchange")
	}

	q, err := ch.QueueDeclare(
		"wallet_notify_queue", // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not declare queue")
	}

	err = ch.QueueBind(
		q.Name,
		"transaction.status.#",
		"anchor_events",
		false,
		nil,
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not bind queue")
	}

	msgs, err := ch.Consume(
		q.Name,
		"wallet_notifier", // consumer tag
		false,             // manual ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("could not register consumer")
	}

	notifyClose := make(chan *amqp.Error)
	ch.NotifyClose(notifyClose)

	walletURL := getenv("WALLET_BACKEND_URL", "http://localhost:3000") + "/transaction/anchor/transaction-status"
	httpClient := &http.Client{Timeout: deliveryTimeout}

	zlog.Info().Str("queue", q.Name).Msg("notifier started, waiting for status events")

	go func() {
		for {
			select {
			case err := <-notifyClose:
				if err != nil {
					zlog.Error().Err(err).Msg("RabbitMQ channel closed")
					os.Exit(1)
				}
				return
			case d, ok := <-msgs:
				if !ok {
					zlog.Error().Msg("message channel closed")
					os.Exit(1)
				}

				var event StatusEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					zlog.Error().Err(err).Msg("could not decode status event")
					if err := d.Nack(false, false); err != nil {
						zlog.Error().Err(err).Msg("nack failed")
					}
					continue
				}

				delivered, attempts := deliver(httpClient, walletURL, d.Body)
				if !delivered {
					// Wallet notification is best-effort: the audit record
					// keeps the trail, the event is not redelivered.
					zlog.Error().
						Str("transaction_id", event.TransactionID).
						Int("attempts", attempts).
						Msg("wallet notification failed, giving up")
				}

				audit := mongodb.SettlementAudit{
					TransactionID: event.TransactionID,
					Status:        event.Status,
					Stage:         event.Stage,
					Reason:        event.Reason,
					Delivered:     delivered,
					Attempts:      attempts,
				}
				saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := auditRepo.Save(saveCtx, audit); err != nil {
					zlog.Error().Err(err).Msg("could not save settlement audit")
					if err := d.Nack(false, true); err != nil {
						zlog.Error().Err(err).Msg("nack failed")
					}
					saveCancel()
					continue
				}
				saveCancel()

				if err := d.Ack(false); err != nil {
					zlog.Error().Err(err).Msg("ack failed")
				}
			}
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	<-stopChan

	zlog.Info().Msg("shutting down notifier")
}

// deliver posts the event to the wallet backend with bounded retries.
func deliver(client *http.Client, url string, body []byte) (bool, int) {
	backoff := time.Second
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				return true, attempt
			}
			zlog.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("wallet backend rejected notification")
		} else {
			zlog.Warn().Err(err).Int("attempt", attempt).Msg("wallet backend unreachable")
		}
		if attempt < deliveryAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return false, deliveryAttempts
}
