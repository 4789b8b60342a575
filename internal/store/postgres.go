package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/approvalledger/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Numeric columns are read back as text and decimal parameters are bound as
// text, so amounts never pass through float64.
const txColumns = `id, uuid, account_number, direction, amount::text, cash_back_amount::text,
	description, status, issued_by, balance::text, ledger_seq, reason, request_hash, created_at, finalized_at`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore opens a pool and pings the database before returning.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32, logger *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for bulk tooling such as the seeder.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return classify("migrate", err)
	}
	s.logger.Info("schema applied")
	return nil
}

// GetAccount retrieves a single account by number.
func (s *PostgresStore) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var a domain.Account
	err := s.pool.QueryRow(ctx,
		"SELECT account_number, username, first_name, last_name, pin, created_at FROM accounts WHERE account_number = $1",
		accountNumber,
	).Scan(&a.AccountNumber, &a.Username, &a.FirstName, &a.LastName, &a.PIN, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, classify("get account", err)
	}
	return &a, nil
}

// CreateAccount inserts an account. ledger_version starts at the highest
// ledger_seq left behind by a deleted account of the same number.
func (s *PostgresStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (account_number, username, first_name, last_name, pin, ledger_version)
		 VALUES ($1, $2, $3, $4, $5, (
		     SELECT COALESCE(MAX(ledger_seq), 0) FROM transactions
		     WHERE account_number = $1 AND status = 'approved'
		 )) RETURNING created_at`,
		acc.AccountNumber, acc.Username, acc.FirstName, acc.LastName, acc.PIN,
	).Scan(&acc.CreatedAt)
	return classify("create account", err)
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT account_number, username, first_name, last_name, pin, created_at FROM accounts ORDER BY account_number")
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.AccountNumber, &a.Username, &a.FirstName, &a.LastName, &a.PIN, &a.CreatedAt); err != nil {
			return nil, classify("scan account", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, classify("list accounts", rows.Err())
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE accounts SET username = $2, first_name = $3, last_name = $4, pin = $5
		 WHERE account_number = $1 RETURNING created_at`,
		acc.AccountNumber, acc.Username, acc.FirstName, acc.LastName, acc.PIN,
	).Scan(&acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	return classify("update account", err)
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, accountNumber string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM accounts WHERE account_number = $1", accountNumber)
	if err != nil {
		return classify("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRetailer(ctx context.Context, r *domain.Retailer) error {
	err := s.pool.QueryRow(ctx,
		"INSERT INTO retailers (retailer_name, address, location) VALUES ($1, $2, $3) RETURNING created_at",
		r.RetailerName, r.Address, r.Location,
	).Scan(&r.CreatedAt)
	return classify("create retailer", err)
}

func (s *PostgresStore) GetRetailer(ctx context.Context, name string) (*domain.Retailer, error) {
	var r domain.Retailer
	err := s.pool.QueryRow(ctx,
		"SELECT retailer_name, address, location, created_at FROM retailers WHERE retailer_name = $1", name,
	).Scan(&r.RetailerName, &r.Address, &r.Location, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRetailerNotFound
	}
	if err != nil {
		return nil, classify("get retailer", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRetailers(ctx context.Context) ([]domain.Retailer, error) {
	rows, err := s.pool.Query(ctx, "SELECT retailer_name, address, location, created_at FROM retailers ORDER BY retailer_name")
	if err != nil {
		return nil, classify("list retailers", err)
	}
	defer rows.Close()

	retailers := make([]domain.Retailer, 0)
	for rows.Next() {
		var r domain.Retailer
		if err := rows.Scan(&r.RetailerName, &r.Address, &r.Location, &r.CreatedAt); err != nil {
			return nil, classify("scan retailer", err)
		}
		retailers = append(retailers, r)
	}
	return retailers, classify("list retailers", rows.Err())
}

func (s *PostgresStore) UpdateRetailer(ctx context.Context, r *domain.Retailer) error {
	err := s.pool.QueryRow(ctx,
		"UPDATE retailers SET address = $2, location = $3 WHERE retailer_name = $1 RETURNING created_at",
		r.RetailerName, r.Address, r.Location,
	).Scan(&r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRetailerNotFound
	}
	return classify("update retailer", err)
}

func (s *PostgresStore) DeleteRetailer(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM retailers WHERE retailer_name = $1", name)
	if err != nil {
		return classify("delete retailer", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRetailerNotFound
	}
	return nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *domain.Transaction) (bool, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (uuid, account_number, direction, amount, description, status, issued_by, request_hash)
		 VALUES ($1, $2, $3, $4::text::numeric, $5, 'pending', $6, $7)
		 ON CONFLICT (uuid) DO NOTHING
		 RETURNING `+txColumns,
		t.UUID, t.AccountNumber, string(t.Direction), t.Amount.String(), t.Description, t.IssuedBy, t.RequestHash,
	)
	inserted, err := scanTransaction(row)
	if err == nil {
		*t = *inserted
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, classify("insert transaction", err)
	}

	// Lost the race on the uuid index; hand back the row that won.
	existing, err := s.GetTransaction(ctx, t.UUID)
	if err != nil {
		return false, err
	}
	*t = *existing
	return true, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, uuid string) (*domain.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, "SELECT "+txColumns+" FROM transactions WHERE uuid = $1", uuid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classify("get transaction", err)
	}
	return t, nil
}

func (s *PostgresStore) FindTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.AccountNumber != "" {
		where = append(where, "account_number = "+arg(f.AccountNumber))
	}
	if f.IssuedByPrefix != "" {
		where = append(where, "issued_by ILIKE "+arg(escapeLike(f.IssuedByPrefix)+"%"))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "created_at < "+arg(f.CreatedBefore))
	}

	query := "SELECT " + txColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("find transactions", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		out = append(out, *t)
	}
	return out, classify("find transactions", rows.Err())
}

func (s *PostgresStore) AggregateApproved(ctx context.Context, f AggregateFilter) (domain.Aggregate, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text, COALESCE(MAX(amount), 0)::text, COUNT(*)
		FROM transactions WHERE status = 'approved' AND direction = $1 AND issued_by = $2`
	args := []any{string(f.Direction), f.IssuedBy}
	if f.AccountNumber != "" {
		query += " AND account_number = $3"
		args = append(args, f.AccountNumber)
	}

	var sum, maxAmount string
	agg := domain.Aggregate{Direction: f.Direction, IssuedBy: f.IssuedBy}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&sum, &maxAmount, &agg.Count); err != nil {
		return domain.Aggregate{}, classify("aggregate", err)
	}

	var err error
	if agg.Sum, err = decimal.NewFromString(sum); err != nil {
		return domain.Aggregate{}, fmt.Errorf("parse sum: %w", err)
	}
	if agg.Max, err = decimal.NewFromString(maxAmount); err != nil {
		return domain.Aggregate{}, fmt.Errorf("parse max: %w", err)
	}
	return agg, nil
}

// ResolveBalance reads the account version and its latest approved row in a
// single statement so both come from the same snapshot.
func (s *PostgresStore) ResolveBalance(ctx context.Context, accountNumber string) (domain.BalanceSnapshot, error) {
	var (
		lastID  *int64
		balance *string
	)
	snap := domain.BalanceSnapshot{AccountNumber: accountNumber, Balance: decimal.Zero}
	err := s.pool.QueryRow(ctx,
		`SELECT a.ledger_version, t.id, t.balance::text
		 FROM accounts a
		 LEFT JOIN LATERAL (
		     SELECT id, balance FROM transactions
		     WHERE account_number = a.account_number AND status = 'approved'
		     ORDER BY ledger_seq DESC LIMIT 1
		 ) t ON true
		 WHERE a.account_number = $1`,
		accountNumber,
	).Scan(&snap.Version, &lastID, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BalanceSnapshot{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.BalanceSnapshot{}, classify("resolve balance", err)
	}

	if lastID != nil && balance != nil {
		snap.LastApprovedID = *lastID
		if snap.Balance, err = decimal.NewFromString(*balance); err != nil {
			return domain.BalanceSnapshot{}, fmt.Errorf("parse balance: %w", err)
		}
	}
	return snap, nil
}

// FinalizeTransaction runs the compare-and-swap in one READ COMMITTED
// transaction. The conditional UPDATE on accounts takes the row lock, so a
// second finalizer for the same account blocks, re-evaluates the predicate
// after the first commits and matches zero rows.
func (s *PostgresStore) FinalizeTransaction(ctx context.Context, expectedVersion int64, fin Finalization) (*domain.Transaction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classify("tx begin", err)
	}
	defer tx.Rollback(ctx)

	newVersion := expectedVersion
	if fin.Status == domain.StatusApproved {
		newVersion++
	}

	tag, err := tx.Exec(ctx,
		"UPDATE accounts SET ledger_version = $3 WHERE account_number = $1 AND ledger_version = $2",
		fin.AccountNumber, expectedVersion, newVersion,
	)
	if err != nil {
		return nil, classify("version check", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("ledger version moved",
			zap.String("account_number", fin.AccountNumber),
			zap.Int64("expected_version", expectedVersion))
		return nil, ErrVersionConflict
	}

	var (
		balance   *string
		ledgerSeq *int64
	)
	if fin.Status == domain.StatusApproved {
		b := fin.Balance.String()
		balance = &b
		ledgerSeq = &newVersion
	}

	row := tx.QueryRow(ctx,
		`UPDATE transactions
		 SET status = $2, balance = $3::text::numeric, ledger_seq = $4, cash_back_amount = $5::text::numeric,
		     issued_by = CASE WHEN $6 = '' THEN issued_by ELSE $6 END, reason = $7, finalized_at = now()
		 WHERE uuid = $1 AND account_number = $8 AND status = 'pending'
		 RETURNING `+txColumns,
		fin.UUID, string(fin.Status), balance, ledgerSeq, fin.CashBackAmount.String(), fin.IssuedBy, fin.Reason, fin.AccountNumber,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetTransaction(ctx, fin.UUID); errors.Is(getErr, domain.ErrTransactionNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, domain.ErrAlreadyFinalized
	}
	if err != nil {
		return nil, classify("finalize transaction", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("tx commit", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		direction string
		status    string
		amount    string
		cashBack  string
		balance   *string
		ledgerSeq *int64
	)
	err := row.Scan(&t.ID, &t.UUID, &t.AccountNumber, &direction, &amount, &cashBack,
		&t.Description, &status, &t.IssuedBy, &balance, &ledgerSeq, &t.Reason, &t.RequestHash,
		&t.CreatedAt, &t.FinalizedAt)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(direction)
	t.Status = domain.Status(status)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.CashBackAmount, err = decimal.NewFromString(cashBack); err != nil {
		return nil, fmt.Errorf("parse cash back: %w", err)
	}
	if balance != nil {
		b, err := decimal.NewFromString(*balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		t.Balance = &b
	}
	if ledgerSeq != nil {
		t.LedgerSeq = *ledgerSeq
	}
	return &t, nil
}

// classify maps driver errors onto the domain taxonomy. Anything that is not
// a known constraint or contention outcome is reported as the store being
// unavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.ErrDuplicate
		case "40001", "40P01":
			return ErrVersionConflict
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ Store = (*PostgresStore)(nil)
