package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type TxContextKey string

const txKey = TxContextKey("tx-context-key")

type Tx interface {
	Querier
	IsOpen() bool
	IsOwner() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txState struct {
	mu     sync.Mutex
	closed bool
}

// Transaction wraps sqlx.Tx. Only the handle that began the transaction may
// commit or roll it back; handles joined through GetTx share its state but
// their Commit and Rollback do nothing.
type Transaction struct {
	*sqlx.Tx
	logger ectologger.Logger
	owner  bool
	state  *txState
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
		owner:  true,
		state:  &txState{},
	}
}

// GetTx joins the open transaction carried by ctx or begins a new one.
// The returned context carries the transaction for Conn.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if current, ok := ctx.Value(txKey).(*Transaction); ok && current != nil && current.IsOpen() {
		return ctx, &Transaction{Tx: current.Tx, logger: logger, owner: false, state: current.state}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction: %w", err)
	}

	newTx := NewTx(tx, logger)
	return context.WithValue(ctx, txKey, newTx), newTx, nil
}

func (t *Transaction) IsOpen() bool {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return !t.state.closed
}

func (t *Transaction) IsOwner() bool {
	return t.owner
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if !t.owner {
		return nil
	}

	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.closed {
		return nil
	}

	t.state.closed = true
	if err := t.Tx.Rollback(); err != nil && err != sql.ErrTxDone {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if !t.owner {
		return nil
	}

	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.closed {
		return nil
	}

	t.state.closed = true
	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}
	return nil
}
