package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockTransactorSerializes(t *testing.T) {
	tx := NewLockTransactor()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestLockTransactorPropagatesError(t *testing.T) {
	want := errors.New("write failed")
	err := NewLockTransactor().WithinTransaction(context.Background(), func(ctx context.Context) error { return want })
	require.ErrorIs(t, err, want)
}

func TestMongoTransactorDisabledRunsDirectly(t *testing.T) {
	called := false
	err := NewMongoTransactor(nil, false).WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}
