package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeBeginner struct {
	tx   *fakeTx
	err  error
	opts pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakeBeginner{tx: tx}

	err := WithTx(context.Background(), pool, func(context.Context, pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
	require.Equal(t, pgx.RepeatableRead, pool.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakeBeginner{tx: tx}
	failed := errors.New("insert failed")

	err := WithTx(context.Background(), pool, func(context.Context, pgx.Tx) error { return failed })
	require.ErrorIs(t, err, failed)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakeBeginner{tx: tx}

	require.Panics(t, func() {
		_ = WithTx(context.Background(), pool, func(context.Context, pgx.Tx) error { panic("scan") })
	})
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
}

func TestWithTxBeginFailure(t *testing.T) {
	pool := &fakeBeginner{err: errors.New("pool closed")}

	err := WithTx(context.Background(), pool, func(context.Context, pgx.Tx) error { return nil })
	require.ErrorContains(t, err, "begin tx")
}
