package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	_ "github.com/lib/pq"
	"github.com/linemk/kronor-shop/internal/cloud"
	"github.com/linemk/kronor-shop/internal/config"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	AWS    aws.Config
}

// NewApp создаёт новый экземпляр App
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.NewApp"

	awsCfg, err := cloud.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	secrets := cloud.NewSecretsClient(secretsmanager.NewFromConfig(awsCfg))
	creds, err := ResolveDBCredentials(ctx, cfg.Database, secrets)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open("postgres", DSN(creds, cfg.Database.SSLMode, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("connected to database",
		slog.String("host", creds.Host),
		slog.String("db", creds.DBName),
		slog.Bool("fromSecret", cfg.Database.SecretID != ""),
	)

	return &App{
		Config: cfg,
		Logger: log,
		DB:     db,
		AWS:    awsCfg,
	}, nil
}

// ResolveDBCredentials берёт доступ к БД из секрета, если он задан, иначе из конфига.
// Пустые поля секрета добиваются значениями конфига.
func ResolveDBCredentials(ctx context.Context, dbCfg config.DatabaseConfig, secrets *cloud.SecretsClient) (*cloud.DBCredentials, error) {
	if dbCfg.SecretID == "" {
		return &cloud.DBCredentials{
			Username: dbCfg.User,
			Password: dbCfg.Password,
			Host:     dbCfg.Host,
			Port:     dbCfg.Port,
			DBName:   dbCfg.Name,
		}, nil
	}

	creds, err := secrets.DBCredentials(ctx, dbCfg.SecretID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve db credentials: %w", err)
	}
	if creds.Host == "" {
		creds.Host = dbCfg.Host
	}
	if creds.Port == 0 {
		creds.Port = dbCfg.Port
	}
	if creds.DBName == "" {
		creds.DBName = dbCfg.Name
	}
	return creds, nil
}

// DSN собирает строку подключения postgres; логин и пароль экранируются.
func DSN(creds *cloud.DBCredentials, sslMode string, extra url.Values) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     creds.Host + ":" + strconv.Itoa(creds.Port),
		Path:     "/" + creds.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}
