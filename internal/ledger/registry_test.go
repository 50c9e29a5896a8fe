package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusbank/backend/internal/models"
)

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("new account starts at zero with one snapshot", func(t *testing.T) {
		registry := NewRegistry(newTestStore(t))

		rec, err := registry.Create(ctx, "Ada Lovelace", "ada@example.com", "hash")
		require.NoError(t, err)
		assert.Len(t, rec.Account.Number, accountNumberLength)
		assert.True(t, rec.Account.Balance.IsZero())
		assert.Empty(t, rec.Transactions)
		require.Len(t, rec.History, 1)
		assert.True(t, rec.History[0].Balance.IsZero())
	})

	t.Run("duplicate login is rejected", func(t *testing.T) {
		registry := NewRegistry(newTestStore(t))

		_, err := registry.Create(ctx, "Ada Lovelace", "ada@example.com", "hash")
		require.NoError(t, err)
		_, err = registry.Create(ctx, "Ada Impostor", "ada@example.com", "hash2")
		assert.ErrorIs(t, err, ErrDuplicateLogin)
	})

	t.Run("colliding account numbers are regenerated", func(t *testing.T) {
		store := newTestStore(t)
		registry := NewRegistry(store)

		numbers := []string{"1111111111", "1111111111", "2222222222"}
		registry.numberFn = func() string {
			n := numbers[0]
			if len(numbers) > 1 {
				numbers = numbers[1:]
			}
			return n
		}

		first, err := registry.Create(ctx, "First", "first@example.com", "hash")
		require.NoError(t, err)
		assert.Equal(t, "1111111111", first.Account.Number)

		second, err := registry.Create(ctx, "Second", "second@example.com", "hash")
		require.NoError(t, err)
		assert.Equal(t, "2222222222", second.Account.Number)
	})

	t.Run("exhausted number generation fails rather than reusing", func(t *testing.T) {
		store := newTestStore(t)
		registry := NewRegistry(store)
		registry.numberFn = func() string { return "1111111111" }

		_, err := registry.Create(ctx, "First", "first@example.com", "hash")
		require.NoError(t, err)
		_, err = registry.Create(ctx, "Second", "second@example.com", "hash")
		assert.ErrorIs(t, err, ErrWriteFailure)
	})
}

func TestRegistry_Mutations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	registry := NewRegistry(store)

	rec, err := registry.Create(ctx, "Ada Lovelace", "ada@example.com", "hash")
	require.NoError(t, err)
	accountNo := rec.Account.Number

	t.Run("rename changes only the display name", func(t *testing.T) {
		require.NoError(t, registry.Rename(ctx, accountNo, "Ada King"))

		got, err := registry.FindByAccountNumber(ctx, accountNo)
		require.NoError(t, err)
		assert.Equal(t, "Ada King", got.Account.DisplayName)
		assert.Equal(t, accountNo, got.Account.Number)
	})

	t.Run("password hash update", func(t *testing.T) {
		require.NoError(t, registry.UpdatePasswordHash(ctx, accountNo, "newhash"))

		got, err := registry.FindByAccountNumber(ctx, accountNo)
		require.NoError(t, err)
		assert.Equal(t, "newhash", got.PasswordHash)
	})

	t.Run("attach card", func(t *testing.T) {
		card := &models.BankCard{Number: "4000123412341234", Holder: "Ada King", Expiry: "08/31", CVV: "123"}
		require.NoError(t, registry.AttachCard(ctx, accountNo, card))

		got, err := registry.FindByAccountNumber(ctx, accountNo)
		require.NoError(t, err)
		require.NotNil(t, got.Card)
		assert.Equal(t, "4000123412341234", got.Card.Number)
	})

	t.Run("lookup by login", func(t *testing.T) {
		got, err := registry.FindByLogin(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, accountNo, got.Account.Number)
	})

	t.Run("delete removes the record and frees the login", func(t *testing.T) {
		require.NoError(t, registry.Delete(ctx, accountNo))

		_, err := registry.FindByAccountNumber(ctx, accountNo)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = registry.FindByLogin(ctx, "ada@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		// The login can be registered again.
		_, err = registry.Create(ctx, "Ada Again", "ada@example.com", "hash")
		assert.NoError(t, err)
	})

	t.Run("mutating a missing account", func(t *testing.T) {
		assert.ErrorIs(t, registry.Rename(ctx, "9999999999", "Nobody"), ErrNotFound)
		assert.ErrorIs(t, registry.Delete(ctx, "9999999999"), ErrNotFound)
	})
}

func TestGenerateAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := generateAccountNumber()
		require.Len(t, n, accountNumberLength)
		for _, c := range n {
			assert.True(t, c >= '0' && c <= '9')
		}
		seen[n] = true
	}
	// 100 draws from 10^10 candidates colliding would point at a broken source.
	assert.Greater(t, len(seen), 95)
}
