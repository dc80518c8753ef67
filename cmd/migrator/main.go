package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/linemk/kronor-shop/internal/app"
	"github.com/linemk/kronor-shop/internal/cloud"
	"github.com/linemk/kronor-shop/internal/config"
)

const migrationTableName = "migrations"

func main() {
	var migrationsPathFlag string
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")

	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// пароль из DB_PASSWORD или из секрета AWS_DB_SECRET_ID
	awsCfg, err := cloud.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		log.Fatalf("failed to load aws config: %v", err)
	}
	creds, err := app.ResolveDBCredentials(ctx, cfg.Database, cloud.NewSecretsClient(secretsmanager.NewFromConfig(awsCfg)))
	if err != nil {
		log.Fatalf("failed to resolve db credentials: %v", err)
	}

	dsnForMigrate := app.DSN(creds, cfg.Database.SSLMode, url.Values{"x-migrations-table": {migrationTableName}})
	log.Printf("Using database %s@%s:%d/%s for migrate", creds.Username, creds.Host, creds.Port, creds.DBName)

	// Создаем объект мигратора
	m, err := migrate.New(
		"file://"+migrationsPath,
		dsnForMigrate,
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else {
			log.Fatalf("migration failed: %v", err)
		}
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", app.DSN(creds, cfg.Database.SSLMode, nil))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tables, err := listTables(ctx, db)
	if err != nil {
		log.Fatalf("failed to list tables: %v", err)
	}
	fmt.Println("Current tables in the database:")
	for _, name := range tables {
		fmt.Println(" -", name)
	}
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}
