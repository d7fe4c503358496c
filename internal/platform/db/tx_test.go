package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoPool(t *testing.T) {
	_, _, err := WithTx(context.Background(), nil)
	if err == nil {
		t.Error("expected error when pool is nil")
	}
	if err.Error() != "no database pool" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

type stubTx struct{ pgx.Tx }

func TestRunInTx_JoinsExistingTx(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, pgx.Tx(stubTx{}))

	ran := false
	// No pool: fn must run on the transaction already in the context.
	err := RunInTx(ctx, nil, func(ctx context.Context) error {
		ran = true
		if TxFromContext(ctx) == nil {
			t.Error("joined transaction should stay in the context")
		}
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("fn should run inside the existing transaction")
	}
}

func TestRunInTx_NoPool(t *testing.T) {
	err := RunInTx(context.Background(), nil, func(ctx context.Context) error {
		t.Error("fn should not run without a pool")
		return nil
	})
	if err == nil {
		t.Error("expected error when pool is nil")
	}
}
