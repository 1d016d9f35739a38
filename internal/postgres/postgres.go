package postgres

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	DBName   string
	SSLMode  string
}

func NewConfigFromEnv() *Config {
	return &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		Username: os.Getenv("POSTGRES_USERNAME"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_DB_NAME"),
		SSLMode:  os.Getenv("POSTGRES_SSL_MODE"),
	}
}

func (c *Config) Setup() *Config {
	const (
		defaultHost     = "localhost"
		defaultPort     = "5432"
		defaultUsername = "postgres"
		defaultPassword = "postgres"
		defaultDBName   = "tracker"
		defaultSSLMode  = "disable"
	)

	c.Host = cmp.Or(c.Host, defaultHost)
	c.Port = cmp.Or(c.Port, defaultPort)
	if _, err := strconv.Atoi(c.Port); err != nil {
		c.Port = defaultPort
	}
	c.Username = cmp.Or(c.Username, defaultUsername)
	c.Password = cmp.Or(c.Password, defaultPassword)
	c.DBName = cmp.Or(c.DBName, defaultDBName)
	c.SSLMode = cmp.Or(c.SSLMode, defaultSSLMode)

	return c
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.DBName, c.Password, c.SSLMode,
	)
}

func NewDB(cfg *Config) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", cfg.String())
}

const (
	_createLedger = `CREATE TABLE IF NOT EXISTS ledger (
						id BIGSERIAL PRIMARY KEY,
						portfolio_id TEXT NOT NULL,
						request_id TEXT NOT NULL,
						symbol TEXT NOT NULL,
						side TEXT NOT NULL,
						quantity NUMERIC(20,4) NOT NULL,
						price NUMERIC(20,2) NOT NULL,
						ts TIMESTAMPTZ NOT NULL
					)`
	_createLedgerRequestIdx = `CREATE UNIQUE INDEX IF NOT EXISTS ledger_portfolio_request
								ON ledger (portfolio_id, request_id)`
	_createLedgerSymbolIdx = `CREATE INDEX IF NOT EXISTS ledger_portfolio_symbol
								ON ledger (portfolio_id, symbol, ts)`
	_createPositions = `CREATE TABLE IF NOT EXISTS positions (
							portfolio_id TEXT NOT NULL,
							symbol TEXT NOT NULL,
							name TEXT NOT NULL,
							quantity NUMERIC(20,4) NOT NULL,
							avg_cost NUMERIC(20,2) NOT NULL,
							PRIMARY KEY (portfolio_id, symbol)
						)`
)

// Migrate creates the ledger and positions tables. Idempotent, runs on
// every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range []string{_createLedger, _createLedgerRequestIdx, _createLedgerSymbolIdx, _createPositions} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: can't run migration", err)
		}
	}
	return nil
}
