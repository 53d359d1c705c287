// Package repo holds the sqlite repositories for agents and chats.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AskKit/internal/models"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repositories run inside or
// outside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func sqlError(action string, err error) error {
	return models.NewAppError(models.KindSQL, fmt.Errorf("failed to %s: %w", action, err))
}

// UnitOfWork groups repository writes in one transaction
type UnitOfWork struct {
	tx     *sql.Tx
	Agents *AgentRepo
	Chats  *ChatRepo
}

// Begin starts a transaction on db
func Begin(ctx context.Context, db *sql.DB) (*UnitOfWork, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sqlError("begin transaction", err)
	}
	return &UnitOfWork{
		tx:     tx,
		Agents: NewAgentRepo(tx),
		Chats:  NewChatRepo(tx),
	}, nil
}

// Commit commits the transaction
func (u *UnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return sqlError("commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back after Commit is a no-op.
func (u *UnitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return sqlError("rollback transaction", err)
	}
	return nil
}
