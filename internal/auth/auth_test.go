package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKeys struct {
	byHash map[string]*KeyInfo
}

func (m *memKeys) FindByHash(_ context.Context, hash string) (*KeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrUnauthorized
	}
	return info, nil
}

func TestAuthenticator(t *testing.T) {
	pepper := []byte("test-pepper")
	raw := "apikey_c9f0e8d7"
	hash := HashKey(pepper, raw)

	keys := &memKeys{byHash: map[string]*KeyInfo{
		hash: {KeyHash: hash, UserID: "u1", IsAdmin: true},
	}}
	a := NewAuthenticator(keys, pepper)

	p, err := a.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.True(t, p.IsAdmin)

	_, err = a.Authenticate(context.Background(), "wrong-key")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Same raw key under a different pepper must not authenticate.
	other := NewAuthenticator(keys, []byte("other-pepper"))
	_, err = other.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
