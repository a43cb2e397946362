package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapHasher keeps the suite fast; the encoding is identical to the default cost.
func cheapHasher() *Argon2HashService {
	return NewArgon2HashServiceWithParams(LocalArgon2Params)
}

func TestArgon2HashService_Verify(t *testing.T) {
	svc := cheapHasher()

	stored, err := svc.Hash("StrongPass123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "$argon2id$v=19$"))

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "StrongPass123!", true},
		{"wrong", "StrongPass123?", false},
		{"case differs", "strongpass123!", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := svc.Verify(tt.password, stored)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match)
		})
	}
}

func TestArgon2HashService_SaltsDiffer(t *testing.T) {
	svc := cheapHasher()

	a, err := svc.Hash("same-password")
	require.NoError(t, err)
	b, err := svc.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestArgon2HashService_EncodesParams(t *testing.T) {
	hash, err := NewArgon2HashService().Hash("test")
	require.NoError(t, err)
	assert.Contains(t, hash, "m=65536,t=1,p=4")

	local, err := cheapHasher().Hash("test")
	require.NoError(t, err)
	assert.Contains(t, local, "m=8192,t=1,p=1")
}

func TestArgon2HashService_VerifiesAcrossParams(t *testing.T) {
	// Hashes carry their own params, so switching cost does not lock users out.
	stored, err := cheapHasher().Hash("ledger-user")
	require.NoError(t, err)

	match, err := NewArgon2HashService().Verify("ledger-user", stored)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestArgon2HashService_MalformedHashes(t *testing.T) {
	svc := cheapHasher()
	stored, err := svc.Hash("pw")
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":       "not-a-valid-hash",
		"other algo":    strings.Replace(stored, "argon2id", "argon2i", 1),
		"other version": strings.Replace(stored, "v=19", "v=16", 1),
		"bad params":    strings.Replace(stored, "m=8192", "m=x", 1),
		"bad salt":      strings.Join(append(strings.Split(stored, "$")[:4], "!!!", "abc"), "$"),
	}
	for name, encoded := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify("pw", encoded)
			assert.Error(t, err)
		})
	}
}

func TestArgon2HashService_LongPassword(t *testing.T) {
	svc := cheapHasher()
	long := strings.Repeat("a", 1000)

	stored, err := svc.Hash(long)
	require.NoError(t, err)

	match, err := svc.Verify(long, stored)
	require.NoError(t, err)
	assert.True(t, match)
}
