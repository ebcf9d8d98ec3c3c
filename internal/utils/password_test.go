package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestVerifyPasswordRejectsNonBcryptStoredValues(t *testing.T) {
	// A row that somehow holds the plain password must never verify,
	// not even against itself.
	assert.False(t, VerifyPassword("s3cret", "s3cret"))
	assert.False(t, VerifyPassword("", ""))
	assert.False(t, VerifyPassword("md5$abcdef", "anything"))
}
