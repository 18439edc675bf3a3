package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/settings"
)

type seedCurrency struct {
	Code   string
	Symbol string
	Rate   string
	Active bool
}

var defaultCurrencies = []seedCurrency{
	{"USD", "$", "1", true},
	{"EUR", "€", "0.92", true},
	{"IDR", "Rp", "15650", true},
	{"JPY", "¥", "151.2", true},
	{"GBP", "£", "0.79", false},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	tenantFlag := flag.String("tenant", "", "tenant slug to seed (defaults to TENANT_DEFAULT or \"default\")")
	baseFlag := flag.String("base", "", "base currency (defaults to BASE_CURRENCY or USD)")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	tenantID := firstNonEmpty(*tenantFlag, os.Getenv("TENANT_DEFAULT"), "default")
	base := strings.ToUpper(firstNonEmpty(*baseFlag, os.Getenv("BASE_CURRENCY"), "USD"))

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	write := func(ctx context.Context) error { return seedCurrencySettings(ctx, db, tenantID, base) }
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		err = settings.ApplyUpdate(ctx, lock.New(client, 100*time.Millisecond), settings.NewCache(client, 0), tenantID, 30*time.Second, write)
		if err != nil {
			log.Fatalf("Failed to seed currency settings for %s: %v", tenantID, err)
		}
	} else {
		log.Println("REDIS_URL is not set, cached settings will expire on their own")
		if err := write(ctx); err != nil {
			log.Fatalf("Failed to seed currency settings for %s: %v", tenantID, err)
		}
	}
	log.Printf("Seeded %d currencies for tenant %s (base %s)", len(defaultCurrencies), tenantID, base)
}

func seedCurrencySettings(ctx context.Context, db *sql.DB, tenantID, base string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO currency_settings (tenant_id, base_currency)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET base_currency = EXCLUDED.base_currency, updated_at = now();
	`, tenantID, base); err != nil {
		return err
	}

	for i, c := range defaultCurrencies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO supported_currencies (tenant_id, code, symbol, exchange_rate, is_active, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tenant_id, code) DO UPDATE
			SET symbol = EXCLUDED.symbol,
			    exchange_rate = EXCLUDED.exchange_rate,
			    is_active = EXCLUDED.is_active,
			    position = EXCLUDED.position;
		`, tenantID, c.Code, c.Symbol, c.Rate, c.Active, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
