package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/linemk/kronor-shop/internal/app"
	"github.com/linemk/kronor-shop/internal/config"
	"github.com/linemk/kronor-shop/internal/lib/logger"
	"github.com/linemk/kronor-shop/internal/mail"
	"github.com/linemk/kronor-shop/internal/notify"
	"github.com/linemk/kronor-shop/internal/storage"
	"github.com/linemk/kronor-shop/internal/worker"
	"github.com/pkg/errors"
)

const (
	modeSQS    = "sqs"
	modeKafka  = "kafka"
	modeLambda = "lambda"
)

func main() {
	// в Lambda нет файла конфига, всё приходит из env
	mode := os.Getenv("NOTIFIER_MODE")
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		mode = modeLambda
	}

	var cfg *config.Config
	if mode == modeLambda {
		var err error
		if cfg, err = config.LoadFromEnv(); err != nil {
			panic(errors.Wrap(err, "failed to load config from env"))
		}
	} else {
		flag.StringVar(&mode, "mode", mode, "consumer mode: sqs, kafka or lambda")
		cfg = config.MustLoad()
	}
	if mode == "" {
		mode = cfg.Queue.Backend
	}

	log := logger.SetupLogger(cfg.Env)
	log.Info("starting notifier", slog.String("env", cfg.Env), slog.String("mode", mode), slog.String("mail", cfg.Mail.Provider))

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	application, err := app.NewApp(initCtx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	sender, err := newSender(application)
	if err != nil {
		panic(err)
	}
	w := worker.New(log, storage.NewOrderRepository(application.DB), sender, cfg.Mail.From, cfg.Mail.Team)

	if mode == modeLambda {
		lambda.Start(worker.NewLambdaHandler(log, w).HandleSQSEvent)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeSQS:
		client := sqs.NewFromConfig(application.AWS)
		queueURL, err := notify.QueueURL(initCtx, client, cfg.Queue.Name, cfg.Queue.URL)
		if err != nil {
			log.Error("failed to resolve queue url", slog.Any("error", err))
			panic(err)
		}
		consumer := worker.NewSQSConsumer(log, client, queueURL, w, worker.SQSOptions{
			MaxMessages:       cfg.Queue.MaxMessages,
			WaitTime:          cfg.Queue.WaitTime,
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		})
		err = consumer.Run(ctx)
		logStopped(log, err)
	case modeKafka:
		reader := worker.NewKafkaReader(cfg.Queue.Kafka.Brokers, cfg.Queue.Kafka.Topic, cfg.Queue.Kafka.GroupID)
		defer reader.Close()
		var deadLetter worker.DeadLetterWriter
		if topic := cfg.Queue.Kafka.DeadLetterTopic; topic != "" {
			dlq := notify.NewKafkaWriter(cfg.Queue.Kafka.Brokers, topic)
			defer dlq.Close()
			deadLetter = dlq
		}
		err = worker.NewKafkaConsumer(log, reader, w, deadLetter).Run(ctx)
		logStopped(log, err)
	default:
		log.Error("unknown notifier mode", slog.String("mode", mode))
		os.Exit(1)
	}
}

func newSender(application *app.App) (mail.Sender, error) {
	cfg := application.Config.Mail
	switch cfg.Provider {
	case config.MailProviderSMTP:
		return mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password), nil
	case config.MailProviderSES:
		return mail.NewSESSender(sesv2.NewFromConfig(application.AWS)), nil
	default:
		return nil, errors.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

func logStopped(log *slog.Logger, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("notifier gracefully stopped")
}
