// Command audit replays every (portfolio, symbol) ledger through the
// engine's averaging rules and verifies the stored positions match.
// The ledger is the source of truth; any drift reported here means a
// bug in the write path, not in the data.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/portfolio-hub/invest-tracker/internal/engine"
	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/postgres"
	"github.com/portfolio-hub/invest-tracker/internal/store"
)

const (
	_queryKeys          = "SELECT DISTINCT portfolio_id, symbol FROM ledger ORDER BY portfolio_id, symbol"
	_queryKeysPortfolio = "SELECT DISTINCT portfolio_id, symbol FROM ledger WHERE portfolio_id = $1 ORDER BY symbol"
)

type ledgerKey struct {
	PortfolioID string `db:"portfolio_id"`
	Symbol      string `db:"symbol"`
}

func main() {
	portfolioID := flag.String("portfolio", "", "restrict the audit to one portfolio")
	flag.Parse()

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.Info)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	if err := godotenv.Load(); err != nil {
		zapLogger.Warnf("can't detect .env file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pgConfig := postgres.NewConfigFromEnv().Setup()
	db, err := postgres.NewDB(pgConfig)
	if err != nil {
		zapLogger.Fatalf("%s: can't connect to db", err)
	}

	var keys []ledgerKey
	if *portfolioID != "" {
		err = db.SelectContext(ctx, &keys, _queryKeysPortfolio, *portfolioID)
	} else {
		err = db.SelectContext(ctx, &keys, _queryKeys)
	}
	if err != nil {
		zapLogger.Fatalf("%s: can't list ledger keys", err)
	}

	st := store.NewPGStore(db)
	drifted := 0
	for _, key := range keys {
		entries, err := st.Ledger().ListBySymbol(ctx, key.PortfolioID, key.Symbol)
		if err != nil {
			zapLogger.Fatalf("%s: can't list ledger for %s/%s", err, key.PortfolioID, key.Symbol)
		}

		want, held, err := engine.Replay(entries)
		if err != nil {
			zapLogger.Errorf("%s: corrupt ledger for %s/%s", err, key.PortfolioID, key.Symbol)
			drifted++
			continue
		}

		got, ok, err := st.Positions().Get(ctx, key.PortfolioID, key.Symbol)
		if err != nil {
			zapLogger.Fatalf("%s: can't get position for %s/%s", err, key.PortfolioID, key.Symbol)
		}

		switch {
		case held != ok:
			zapLogger.Errorf("%s/%s: replay held=%t but store held=%t", key.PortfolioID, key.Symbol, held, ok)
			drifted++
		case held && (!got.Quantity.Equal(want.Quantity) || !got.AvgCost.Equal(want.AvgCost)):
			zapLogger.Errorf("%s/%s: replay qty=%s avg=%s but store qty=%s avg=%s",
				key.PortfolioID, key.Symbol, want.Quantity, want.AvgCost, got.Quantity, got.AvgCost)
			drifted++
		}
	}

	if drifted > 0 {
		zapLogger.Errorf("audit failed: %d of %d keys drifted", drifted, len(keys))
		loggerSync()
		os.Exit(1)
	}
	zapLogger.Infof("audit ok: %d keys verified", len(keys))
}
