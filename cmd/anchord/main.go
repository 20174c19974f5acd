package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/domain"
	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/bank"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/http/handler"
	internalMiddleware "github.com/GrowthSense/buntuanchorastralia/internal/infra/http/middleware"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/postgres"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/rabbitmq"
	redisInfra "github.com/GrowthSense/buntuanchorastralia/internal/infra/redis"
	"github.com/GrowthSense/buntuanchorastralia/internal/infra/stellar"
	"github.com/GrowthSense/buntuanchorastralia/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Missing .env is fine; production uses real environment variables.
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env not found, using system environment")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbURL := getenv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:5432/%s?sslmode=disable",
		getenv("DB_USER", "anchor"),
		getenv("DB_PASSWORD", "secret123"),
		getenv("DB_HOST", "localhost"),
		getenv("DB_NAME", "anchor"),
	))
	dbPool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to the database")
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("database is not responding")
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	redisClient := redis.NewClient(&redis.Options{
		Addr: getenv("REDIS_HOST", "localhost") + ":6379",
	})
	var idempotencyRepo gateway.IdempotencyRepository
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Degraded mode: the state-guarded completion still prevents double
		// disbursement, only the replay window is lost.
		log.Warn().Err(err).Msg("could not connect to Redis (idempotency cache disabled)")
	} else {
		idempotencyRepo = redisInfra.NewIdempotencyRepository(redisClient)
		log.Info().Msg("connected to Redis")
	}

	rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:5672/",
		getenv("RABBITMQ_USER", "guest"),
		getenv("RABBITMQ_PASS", "guest"),
		getenv("RABBITMQ_HOST", "localhost"),
	)
	var eventPublisher gateway.EventPublisher
	rabbitConn, err := amqp.DialConfig(rabbitURL, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "AnchorAPI_Publisher",
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not connect to RabbitMQ (status events disabled)")
	} else {
		defer rabbitConn.Close()

		ch, err := rabbitConn.Channel()
		if err != nil {
			log.Fatal().Err(err).Msg("could not open RabbitMQ channel")
		}
		defer ch.Close()

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
			log.Fatal().Err(err).Msg("could not declare exchange")
		}
		eventPublisher = rabbitmq.NewRabbitMQPublisher(ch)
		log.Info().Msg("connected to RabbitMQ")
	}

	horizonClient := &horizonclient.Client{
		HorizonURL: getenv("HORIZON_URL", "https://horizon-testnet.stellar.org"),
		HTTP:       http.DefaultClient,
	}
	ledgerGateway, err := stellar.NewGateway(
		horizonClient,
		os.Getenv("DISTRIBUTION_SEED"),
		getenv("NETWORK_PASSPHRASE", network.TestNetworkPassphrase),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize the ledger gateway")
	}

	assetDecimals, err := strconv.ParseInt(getenv("ASSET_DECIMALS", "2"), 10, 32)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ASSET_DECIMALS")
	}
	asset := domain.Asset{
		Code:     getenv("ASSET_CODE", "AUDT"),
		Issuer:   os.Getenv("ASSET_ISSUER"),
		Decimals: int32(assetDecimals),
	}

	railClient := bank.NewClient(
		getenv("BANKING_TRANSFER_URL", "http://localhost:9090/transfers"),
		os.Getenv("BANKING_API_KEY"),
	)
	railConfig := usecase.RailConfig{
		TreasuryAccount: os.Getenv("TREASURY_ACCOUNT"),
		Currency:        getenv("RAIL_CURRENCY", "AUD"),
	}

	// Infrastructure layer
	transactionRepository := postgres.NewTransactionRepository(dbPool)
	payoutRepository := postgres.NewPayoutRepository(dbPool)
	agentRepository := postgres.NewAgentRepository(dbPool)
	uow := postgres.NewUow(dbPool)

	// Use cases
	settleWithdrawalUC := usecase.NewSettleWithdrawal(transactionRepository, payoutRepository, railClient, eventPublisher, railConfig)
	chainPayoutUC := usecase.NewDispatchChainPayout(transactionRepository, ledgerGateway, settleWithdrawalUC, eventPublisher)
	requestWithdrawalUC := usecase.NewRequestWithdrawal(transactionRepository, payoutRepository, agentRepository, ledgerGateway, asset)
	observePaymentUC := usecase.NewObservePayment(transactionRepository, payoutRepository)
	completePayoutUC := usecase.NewCompletePayout(transactionRepository, payoutRepository, idempotencyRepo, uow, eventPublisher)
	approvePayoutUC := usecase.NewApprovePayout(transactionRepository, payoutRepository)
	listPayoutsUC := usecase.NewListPayouts(transactionRepository, payoutRepository, agentRepository)
	railEventUC := usecase.NewProcessRailEvent(transactionRepository, chainPayoutUC, settleWithdrawalUC)
	agentDepositUC := usecase.NewAgentDeposit(transactionRepository, agentRepository, chainPayoutUC, asset)
	transactionAdminUC := usecase.NewTransactionAdmin(transactionRepository, chainPayoutUC)

	// Handlers
	payoutHandler := handler.NewPayoutHandler(listPayoutsUC, completePayoutUC, approvePayoutUC)
	withdrawalHandler := handler.NewWithdrawalHandler(requestWithdrawalUC, settleWithdrawalUC)
	transactionHandler := handler.NewTransactionHandler(transactionAdminUC, agentDepositUC)
	webhookHandler := handler.NewWebhookHandler(railEventUC, os.Getenv("WEBHOOK_SECRET"))

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	router.Post("/webhooks/bank", webhookHandler.HandleBankEvent)

	auth := internalMiddleware.BearerAuth(os.Getenv("SERVICE_TOKEN"))
	router.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/api/agents", payoutHandler.ListAgents)
		r.Get("/api/payouts/ready", payoutHandler.ListReady)
		r.Get("/api/payouts/all", payoutHandler.ListAll)
		r.Post("/api/payouts/lookup", payoutHandler.Lookup)
		r.Post("/api/payouts/complete", payoutHandler.Complete)

		r.Post("/internal/withdrawals", withdrawalHandler.Request)
		r.Post("/internal/withdrawals/{id}/settle", withdrawalHandler.Settle)
		r.Post("/internal/withdrawals/cash/approve", payoutHandler.Approve)
		r.Get("/internal/cash-payouts/pending", payoutHandler.ListPending)
		r.Post("/internal/cash-payouts/mark-ready", payoutHandler.MarkReady)

		r.Post("/internal/agents/deposits", transactionHandler.AgentDeposit)
		r.Get("/internal/transactions", transactionHandler.List)
		r.Get("/internal/transactions/{id}", transactionHandler.Get)
		r.Post("/internal/transactions/{id}/approve", transactionHandler.ApproveDeposit)
		r.Post("/internal/transactions/{id}/approve-withdrawal", transactionHandler.ApproveWithdrawal)
		r.Post("/internal/transactions/{id}/reject", transactionHandler.Reject)
	})

	// The watcher owns the stream for the process lifetime. If it ever
	// returns outside of shutdown, the process exits so the supervisor can
	// restart it; payments must never go unobserved silently.
	watcher := stellar.NewWatcher(horizonClient, ledgerGateway.ReceiveAccount(), observePaymentUC)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal().Err(err).Msg("payment watcher stopped")
		}
	}()

	port := getenv("PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		log.Info().Str("port", port).Msg("anchor settlement API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	<-stopChan

	log.Info().Msg("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
