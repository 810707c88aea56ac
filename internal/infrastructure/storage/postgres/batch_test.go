package postgres

import (
	"context"
	"testing"
)

func TestCopyFromSlice_RequiresTransaction(t *testing.T) {
	b := NewBatchInserter(&TxManager{})

	_, err := b.CopyFromSlice(context.Background(), "ledger_entries", []string{"id"}, [][]any{{1}})
	if err == nil {
		t.Fatal("CopyFromSlice outside a transaction must fail, not COPY on the pool")
	}
}
