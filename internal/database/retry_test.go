package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordBackoff(t *testing.T) *[]int {
	t.Helper()
	var waits []int
	orig := busyBackoff
	busyBackoff = func(n int) time.Duration {
		waits = append(waits, n)
		return 0
	}
	t.Cleanup(func() { busyBackoff = orig })
	return &waits
}

func TestRunTx_GivesUpWithoutWaitingAfterLastAttempt(t *testing.T) {
	waits := recordBackoff(t)
	s := openMemory(t)
	locked := errors.New("database is locked (5) (SQLITE_BUSY)")

	attempts := 0
	err := runTx(context.Background(), s.db, func(*sql.Tx) error {
		attempts++
		return locked
	})

	assert.ErrorIs(t, err, locked)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, *waits)
}

func TestRunTx_RetriesUntilUnlocked(t *testing.T) {
	waits := recordBackoff(t)
	s := openMemory(t)

	attempts := 0
	err := runTx(context.Background(), s.db, func(*sql.Tx) error {
		attempts++
		if attempts == 1 {
			return errors.New("database table is locked")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []int{1}, *waits)
}

func TestRunTx_OtherErrorsAreNotRetried(t *testing.T) {
	waits := recordBackoff(t)
	s := openMemory(t)

	attempts := 0
	err := runTx(context.Background(), s.db, func(*sql.Tx) error {
		attempts++
		return errors.New("no such table: job_hashes")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *waits)
}

func TestBusyBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, busyBackoff(1))
	assert.Equal(t, 200*time.Millisecond, busyBackoff(2))
}
