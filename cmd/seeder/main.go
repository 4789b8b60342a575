package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/approvalledger/internal/config"
	"github.com/punchamoorthee/approvalledger/internal/domain"
	"github.com/punchamoorthee/approvalledger/internal/service"
	"github.com/punchamoorthee/approvalledger/internal/store"
)

const seedIssuer = "seeder"

var (
	totalAccounts  int
	openingBalance string
	parallelism    int
)

func init() {
	flag.IntVar(&totalAccounts, "accounts", 1000, "Number of accounts to seed")
	flag.StringVar(&openingBalance, "opening", "100.00", "Opening credit per account")
	flag.IntVar(&parallelism, "parallel", 8, "Concurrent opening credits")
}

// accountNumber returns the deterministic account number for seed index i.
// The benchmark addresses accounts the same way.
func accountNumber(i int) string {
	return fmt.Sprintf("ACC%06d", i)
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Driver != config.DriverPostgres {
		log.Fatal("seeder requires STORE_DRIVER=postgres")
	}
	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	opening, err := decimal.NewFromString(openingBalance)
	if err != nil {
		logger.Fatal("Invalid opening balance", zap.Error(err))
	}

	ctx := context.Background()
	pg, err := store.NewPostgresStore(ctx, cfg.DBSource, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	logger.Info("Seeding database", zap.Int("accounts", totalAccounts))

	var count int
	if err := pg.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		logger.Fatal("Count failed", zap.Error(err))
	}
	if count >= totalAccounts {
		logger.Info("Accounts already present, skipping bulk insert", zap.Int("existing", count))
	} else {
		// Bulk Insert using CopyFrom
		now := time.Now()
		rows := make([][]any, 0, totalAccounts-count)
		for i := count + 1; i <= totalAccounts; i++ {
			num := accountNumber(i)
			rows = append(rows, []any{num, "user" + num, "Seed", num, now})
		}

		copied, err := pg.Pool().CopyFrom(
			ctx,
			pgx.Identifier{"accounts"},
			[]string{"account_number", "username", "first_name", "last_name", "created_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			logger.Fatal("Bulk insert failed", zap.Error(err))
		}
		logger.Info("Accounts inserted", zap.Int64("rows", copied))
	}

	// Opening credits go through the engine so each one lands in the ledger
	// with a sequence and balance. Keys make reruns harmless.
	svc := service.NewLedgerService(pg, logger, service.DefaultOptions())
	if opening.IsPositive() {
		if err := seedOpeningCredits(ctx, svc, opening); err != nil {
			logger.Fatal("Opening credits failed", zap.Error(err))
		}
	}

	logger.Info("Seeding complete")
}

func seedOpeningCredits(ctx context.Context, svc *service.LedgerService, amount decimal.Decimal) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i := 1; i <= totalAccounts; i++ {
		num := accountNumber(i)
		g.Go(func() error {
			t, _, err := svc.RequestTransaction(gctx, service.TransactionRequest{
				AccountNumber:  num,
				Direction:      domain.Credit,
				Amount:         amount,
				Description:    "opening balance",
				IssuedBy:       seedIssuer,
				IdempotencyKey: "seed-" + num,
			})
			if err != nil {
				return fmt.Errorf("request %s: %w", num, err)
			}
			if t.Status != domain.StatusPending {
				return nil
			}
			_, err = svc.Approve(gctx, service.ApproveRequest{UUID: t.UUID, IssuedBy: seedIssuer})
			if err != nil && !errors.Is(err, domain.ErrAlreadyFinalized) {
				return fmt.Errorf("approve %s: %w", num, err)
			}
			return nil
		})
	}
	return g.Wait()
}
