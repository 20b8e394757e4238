package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/security"
)

var cheapArgon = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", cheapArgon)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	a, err := security.HashPassword("same", cheapArgon)
	require.NoError(t, err)
	b, err := security.HashPassword("same", cheapArgon)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", cheapArgon)
	assert.Error(t, err)
}

func TestParamsFromConfigClamps(t *testing.T) {
	params := security.ParamsFromConfig(config.PasswordConfig{ArgonParallelism: 1000, ArgonKeyLen: 4})
	assert.Equal(t, uint32(8), params.Memory)
	assert.Equal(t, uint32(1), params.Time)
	assert.Equal(t, uint8(255), params.Parallelism)
	assert.Equal(t, uint32(8), params.SaltLen)
	assert.Equal(t, uint32(16), params.KeyLen)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	valid, err := security.HashPassword("pw", cheapArgon)
	require.NoError(t, err)
	fields := strings.Split(valid, "$")

	cases := map[string]string{
		"not phc":       "not-a-hash",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
		"wrong version": strings.Replace(valid, "v=19", "v=16", 1),
		"bad params":    strings.Replace(valid, fields[3], "m=x,t=1,p=1", 1),
		"zero time":     strings.Replace(valid, fields[3], "m=8192,t=0,p=1", 1),
		"bad salt":      strings.Replace(valid, fields[4], "!!", 1),
		"empty key":     strings.Join(append(fields[:5:5], ""), "$"),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := security.VerifyPassword("pw", encoded)
			assert.ErrorIs(t, err, security.ErrInvalidHash)
		})
	}
}
