package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fundlane/notify-BE/api"
	db "github.com/fundlane/notify-BE/internal/db"
	"github.com/fundlane/notify-BE/internal/delivery"
	"github.com/fundlane/notify-BE/internal/mailer"
	"github.com/fundlane/notify-BE/internal/notification"
	"github.com/fundlane/notify-BE/internal/scheduler"
	"github.com/fundlane/notify-BE/internal/util"
	"github.com/fundlane/notify-BE/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"github.com/rs/zerolog/log"

	_ "github.com/fundlane/notify-BE/docs"
)

//	@title			Fundlane Notification API
//	@version		1.0.0
//	@description	API documentation for the Fundlane notification service

//	@host		localhost:8080
//	@BasePath	/v1
//	@schemes	http https

//	@securityDefinitions.apikey	accessToken
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configurations
	config, err := util.LoadConfig("./app.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config file 😣")
	}

	log.Info().Msg("configurations loaded successfully ✅")

	// Create connection pool
	connPool, err := pgxpool.New(context.Background(), config.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to validate db connection string 😣")
	}

	pingErr := connPool.Ping(context.Background())
	if pingErr != nil {
		log.Fatal().Err(pingErr).Msg("failed to connect to db 😣")
	}
	log.Info().Msg("connected to db ✅")

	store := db.NewStore(connPool)

	redisDb := redis.NewClient(&redis.Options{
		Addr:     config.RedisServerAddress,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	redisOpt := asynq.RedisClientOpt{
		Addr: config.RedisServerAddress,
	}

	restyClient := resty.New()
	directory := delivery.NewPlatformDirectory(restyClient, config.UserDirectoryURL, config.UserDirectoryAPIKey)

	mailSender, err := mailer.NewSMTPSender(config.SMTPHost, config.SMTPPort,
		config.SMTPUsername, config.SMTPPassword, config.SMTPFromAddress, directory)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mail sender 😣")
	}
	log.Info().Msg("mail sender created successfully ✅")

	registry := delivery.NewRegistry()
	registry.Register(db.NotificationChannelEmail, mailSender)
	registry.Register(db.NotificationChannelSMS, delivery.NewSMSGateway(restyClient, config.SMSGatewayURL, config.SMSGatewayAPIKey, directory))
	registry.Register(db.NotificationChannelPortal, delivery.NewPortalTransport())

	deliverer := notification.NewDeliverer(store, registry, config.AttemptTimeout)

	cache := notification.NewUnreadCountCache(redisDb)
	taskDistributor := worker.NewTaskDistributor(redisOpt)
	taskInspector := worker.NewTaskInspector(redisOpt)

	dispatcher := notification.NewDispatcher(store, taskDistributor, cache)
	tracker := notification.NewReadTracker(store, cache)

	taskProcessor := worker.NewRedisTaskProcessor(redisOpt, store, deliverer)
	if err = taskProcessor.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start task processor 😣")
	}
	log.Info().Msg("task processor started successfully ✅")

	backgroundScheduler, err := scheduler.New(store, deliverer, scheduler.Config{
		RetrySweepInterval: config.RetrySweepInterval,
		RetryBatchSize:     config.RetryBatchSize,
		DeliveryWorkers:    config.DeliveryWorkers,
		RetentionInterval:  config.RetentionInterval,
		ReadRetentionDays:  config.ReadRetentionDays,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create background scheduler 😣")
	}

	if err = backgroundScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start background scheduler 😣")
	}
	log.Info().Msg("background scheduler started successfully ✅")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runHTTPServer(config, store, dispatcher, tracker, taskInspector)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err = backgroundScheduler.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop background scheduler")
	}
	taskProcessor.Shutdown()
	connPool.Close()
}

func runHTTPServer(config util.Config, store db.Store, dispatcher *notification.Dispatcher, tracker *notification.ReadTracker, taskInspector worker.TaskInspector) {
	server, err := api.NewServer(store, dispatcher, tracker, taskInspector, &config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create HTTP server 😣")
	}

	err = server.Start(config.HTTPServerAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start HTTP server 😣")
	}
}
