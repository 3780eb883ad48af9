package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/ledger"
	"github.com/mmynk/syndicate/internal/storage"
	"github.com/mmynk/syndicate/internal/storage/storagetest"
)

func TestSQLiteStore(t *testing.T) {
	// Create temp directory for test database
	tempDir, err := os.MkdirTemp("", "syndicate-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	storagetest.Run(t, store)
}

func TestSQLiteStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Migrations are idempotent
	store, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
}

func TestSQLiteStore_CommitSurvivesCancel(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	bob := uuid.New()
	err = store.Tx(context.Background(), func(st storage.State) error {
		_, _, err := ledger.New(st).CreatePayment(context.Background(), uuid.New(), bob, 100, 0)
		return err
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	// The caller goes away right after the payout is made.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var paidOut int64
	payout := ledger.TransferFunc(func(_ context.Context, _ uuid.UUID, amount int64) error {
		paidOut += amount
		cancel()
		return nil
	})

	err = store.Tx(ctx, func(st storage.State) error {
		_, err := ledger.New(st, ledger.WithTransferer(payout)).WithdrawAll(ctx, bob)
		return err
	})
	if err != nil {
		t.Fatalf("WithdrawAll failed: %v", err)
	}
	if paidOut != 100 {
		t.Fatalf("paid out %d, want 100", paidOut)
	}

	var balance int64
	err = store.Tx(context.Background(), func(st storage.State) error {
		var err error
		balance, err = st.Balance(context.Background(), bob)
		return err
	})
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance after paid-out withdrawal = %d, want 0", balance)
	}
}

func TestSQLiteStore_CancelledBeforeStart(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = store.Tx(ctx, func(storage.State) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("fn ran on a cancelled context")
	}
}
