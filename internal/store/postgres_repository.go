/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for the ledger's four tables: streams,
 * subscriptions, the account balance table, and payout records, plus the
 * single-row platform settings table that holds the fee rate.
 *
 * Composite mutations run in one transaction with guarded UPDATEs
 * (`WHERE active`, `WHERE amount >= $n`), so a conflicting concurrent write
 * fails the operation cleanly instead of corrupting ledger state. Payout
 * rows are written inside the same transaction as the state change they
 * settle.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/google/uuid: Payout record identifiers.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowpay/streaming-service/internal/domain"
)

var (
	ErrStreamNotFound        = errors.New("stream not found")
	ErrStreamNotActive       = errors.New("stream is not active")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrSubscriptionNotActive = errors.New("subscription is not active")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrNoWithdrawableBalance = errors.New("no withdrawable balance")
	ErrStaleSnapshot         = errors.New("ledger entry changed since it was read")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the ledger tables if they do not exist and seeds the
// platform fee rate on first boot. Subsequent boots never overwrite a fee
// rate that `SetFeeBps` has changed.
func (r *PostgresRepository) EnsureSchema(ctx context.Context, defaultFeeBps int64) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS streams (
			id BIGSERIAL PRIMARY KEY,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			deposit BIGINT NOT NULL,
			rate_per_second BIGINT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			stop_time TIMESTAMPTZ NOT NULL,
			remaining_balance BIGINT NOT NULL CHECK (remaining_balance >= 0),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_sender ON streams (sender, id)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_recipient ON streams (recipient, id)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			subscriber TEXT NOT NULL,
			provider TEXT NOT NULL,
			rate_per_second BIGINT NOT NULL,
			last_payment_time TIMESTAMPTZ NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_subscriber ON subscriptions (subscriber, id)`,
		`CREATE TABLE IF NOT EXISTS balances (
			account TEXT PRIMARY KEY,
			amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payouts (
			id UUID PRIMARY KEY,
			account TEXT NOT NULL,
			amount BIGINT NOT NULL,
			kind TEXT NOT NULL,
			entity_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS platform_settings (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			fee_bps BIGINT NOT NULL CHECK (fee_bps >= 0 AND fee_bps <= 1000)
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO platform_settings (id, fee_bps) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		defaultFeeBps,
	)
	return err
}

const streamColumns = `id, sender, recipient, deposit, rate_per_second, start_time, stop_time, remaining_balance, active, created_at, updated_at`

func scanStream(row pgx.Row) (*domain.Stream, error) {
	var s domain.Stream
	err := row.Scan(
		&s.ID,
		&s.Sender,
		&s.Recipient,
		&s.Deposit,
		&s.RatePerSecond,
		&s.StartTime,
		&s.StopTime,
		&s.RemainingBalance,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStream inserts a new stream and, when the supplied value exceeded the
// computed deposit, records the excess as a refund payout to the sender in
// the same transaction. The allocated id comes from the streams sequence and
// is never reused.
func (r *PostgresRepository) CreateStream(ctx context.Context, stream *domain.Stream, refund int64) (*domain.Stream, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO streams (sender, recipient, deposit, rate_per_second, start_time, stop_time, remaining_balance, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING ` + streamColumns
	created, err := scanStream(tx.QueryRow(ctx, query,
		stream.Sender,
		stream.Recipient,
		stream.Deposit,
		stream.RatePerSecond,
		stream.StartTime,
		stream.StopTime,
		stream.RemainingBalance,
	))
	if err != nil {
		return nil, err
	}

	if err := recordPayout(ctx, tx, stream.Sender, refund, domain.PayoutStreamRefund, &created.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// FindStreamByID retrieves a stream from the database by its id.
func (r *PostgresRepository) FindStreamByID(ctx context.Context, streamID int64) (*domain.Stream, error) {
	query := `SELECT ` + streamColumns + ` FROM streams WHERE id = $1`
	s, err := scanStream(r.db.QueryRow(ctx, query, streamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStreamNotFound
		}
		return nil, err
	}
	return s, nil
}

// ApplyStreamWithdrawal settles an accrued recipient balance in one
// transaction: decrement the stream's remaining balance (and deactivate when
// requested), credit the fee to the platform account, and record the net
// payout to the recipient. The update compares the remaining balance against
// the snapshot the gross amount was computed from; a concurrent settlement
// that already consumed the window fails the guard instead of being paid a
// second time.
func (r *PostgresRepository) ApplyStreamWithdrawal(ctx context.Context, params StreamWithdrawalParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE streams
		SET remaining_balance = remaining_balance - $2,
		    active = CASE WHEN $3 THEN FALSE ELSE active END,
		    updated_at = NOW()
		WHERE id = $1 AND active AND remaining_balance = $4 AND remaining_balance >= $2`,
		params.StreamID, params.Gross, params.Deactivate, params.ExpectedRemainingBalance,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStaleSnapshot
	}

	if err := creditBalance(ctx, tx, params.PlatformAccount, params.Fee); err != nil {
		return err
	}
	if err := recordPayout(ctx, tx, params.Recipient, params.Gross-params.Fee, domain.PayoutStreamWithdrawal, &params.StreamID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ApplyStreamCancellation terminates a stream in one transaction. The
// remaining balance is zeroed unconditionally, but only while it still
// matches the snapshot the split amounts were computed from — a withdrawal
// that landed in between makes the split stale and fails the guard.
func (r *PostgresRepository) ApplyStreamCancellation(ctx context.Context, params StreamCancellationParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE streams
		SET remaining_balance = 0, active = FALSE, updated_at = NOW()
		WHERE id = $1 AND active AND remaining_balance = $2`,
		params.StreamID, params.ExpectedRemainingBalance,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStaleSnapshot
	}

	if err := creditBalance(ctx, tx, params.PlatformAccount, params.Fee); err != nil {
		return err
	}
	if err := recordPayout(ctx, tx, params.Recipient, params.RecipientGross-params.Fee, domain.PayoutStreamCancelNet, &params.StreamID); err != nil {
		return err
	}
	if err := recordPayout(ctx, tx, params.Sender, params.SenderAmount, domain.PayoutStreamCancelSender, &params.StreamID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindStreamIDsBySender returns the ordered list of stream ids where the
// account is the sender. The list is append-only because streams are never
// deleted, only deactivated.
func (r *PostgresRepository) FindStreamIDsBySender(ctx context.Context, account string) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM streams WHERE sender = $1 ORDER BY id`, account)
}

// FindStreamIDsByRecipient returns the ordered list of stream ids where the
// account is the recipient.
func (r *PostgresRepository) FindStreamIDsByRecipient(ctx context.Context, account string) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM streams WHERE recipient = $1 ORDER BY id`, account)
}

const subscriptionColumns = `id, subscriber, provider, rate_per_second, last_payment_time, active, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.Subscriber,
		&s.Provider,
		&s.RatePerSecond,
		&s.LastPaymentTime,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSubscription inserts a new subscription and credits the initial
// funding into the subscriber's shared balance row in the same transaction.
// The funding is not earmarked to the subscription.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *domain.Subscription, initialFunding int64) (*domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO subscriptions (subscriber, provider, rate_per_second, last_payment_time, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING ` + subscriptionColumns
	created, err := scanSubscription(tx.QueryRow(ctx, query,
		sub.Subscriber,
		sub.Provider,
		sub.RatePerSecond,
		sub.LastPaymentTime,
	))
	if err != nil {
		return nil, err
	}

	if err := creditBalance(ctx, tx, sub.Subscriber, initialFunding); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// FindSubscriptionByID retrieves a subscription from the database by its id.
func (r *PostgresRepository) FindSubscriptionByID(ctx context.Context, subscriptionID int64) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(r.db.QueryRow(ctx, query, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s, nil
}

// ApplySubscriptionPayment settles one billing window in a single
// transaction: advance last_payment_time (compare-and-set against the
// billing-clock reading the payment was computed from, so the same window
// cannot be settled twice), debit the subscriber's shared balance (failing
// without side effects when it cannot cover the payment), credit the fee to
// the platform account, and record the net payout to the provider.
func (r *PostgresRepository) ApplySubscriptionPayment(ctx context.Context, params SubscriptionPaymentParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE subscriptions SET last_payment_time = $2, updated_at = NOW()
		WHERE id = $1 AND active AND last_payment_time = $3`,
		params.SubscriptionID, params.PaidAt, params.LastPaymentTime,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStaleSnapshot
	}

	ct, err = tx.Exec(ctx, `
		UPDATE balances SET amount = amount - $2, updated_at = NOW()
		WHERE account = $1 AND amount >= $2`,
		params.Subscriber, params.Payment,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Rolls back with last_payment_time untouched, so the accrued window
		// is retried in full after a top-up.
		return ErrInsufficientFunds
	}

	if err := creditBalance(ctx, tx, params.PlatformAccount, params.Fee); err != nil {
		return err
	}
	if err := recordPayout(ctx, tx, params.Provider, params.Payment-params.Fee, domain.PayoutSubscriptionNet, &params.SubscriptionID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeactivateSubscription marks a subscription inactive. A subscription that
// is already inactive fails the guard, which makes a second cancellation
// attempt an error.
func (r *PostgresRepository) DeactivateSubscription(ctx context.Context, subscriptionID int64) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE subscriptions SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND active`,
		subscriptionID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSubscriptionNotActive
	}
	return nil
}

// FindSubscriptionIDsBySubscriber returns the ordered list of subscription
// ids belonging to the account.
func (r *PostgresRepository) FindSubscriptionIDsBySubscriber(ctx context.Context, account string) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT id FROM subscriptions WHERE subscriber = $1 ORDER BY id`, account)
}

// CreditBalance adds to an account's generic withdrawable balance, creating
// the row on first credit.
func (r *PostgresRepository) CreditBalance(ctx context.Context, account string, amount int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()`,
		account, amount,
	)
	return err
}

// GetBalance returns an account's generic withdrawable balance; a missing
// row reads as zero.
func (r *PostgresRepository) GetBalance(ctx context.Context, account string) (int64, error) {
	var amount int64
	err := r.db.QueryRow(ctx, `SELECT amount FROM balances WHERE account = $1`, account).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

// WithdrawBalance zeroes an account's entire balance row and records the
// payout in the same transaction, returning the amount paid out.
func (r *PostgresRepository) WithdrawBalance(ctx context.Context, account string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var amount int64
	err = tx.QueryRow(ctx, `SELECT amount FROM balances WHERE account = $1 FOR UPDATE`, account).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoWithdrawableBalance
		}
		return 0, err
	}
	if amount == 0 {
		return 0, ErrNoWithdrawableBalance
	}

	if _, err := tx.Exec(ctx, `UPDATE balances SET amount = 0, updated_at = NOW() WHERE account = $1`, account); err != nil {
		return 0, err
	}
	if err := recordPayout(ctx, tx, account, amount, domain.PayoutBalanceWithdrawal, nil); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return amount, nil
}

// GetFeeBps returns the current platform fee rate in basis points.
func (r *PostgresRepository) GetFeeBps(ctx context.Context) (int64, error) {
	var feeBps int64
	err := r.db.QueryRow(ctx, `SELECT fee_bps FROM platform_settings WHERE id = 1`).Scan(&feeBps)
	if err != nil {
		return 0, err
	}
	return feeBps, nil
}

// SetFeeBps replaces the platform fee rate. The new rate applies to
// settlements that happen after this call; settled payouts are never
// recomputed.
func (r *PostgresRepository) SetFeeBps(ctx context.Context, feeBps int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO platform_settings (id, fee_bps) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET fee_bps = EXCLUDED.fee_bps`,
		feeBps,
	)
	return err
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, account string) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// creditBalance upserts a balance credit inside an open transaction. Zero
// and negative credits are skipped (a fee of 0 creates no row).
func creditBalance(ctx context.Context, tx pgx.Tx, account string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()`,
		account, amount,
	)
	return err
}

// recordPayout writes one outbound transfer record inside an open
// transaction. Zero-amount payouts are skipped.
func recordPayout(ctx context.Context, tx pgx.Tx, account string, amount int64, kind string, entityID *int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO payouts (id, account, amount, kind, entity_id) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), account, amount, kind, entityID,
	)
	return err
}
