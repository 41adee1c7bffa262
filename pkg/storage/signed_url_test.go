package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("attachment:7", "7_1700000000_notes.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, key, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "attachment:7", subject)
	assert.Equal(t, "7_1700000000_notes.pdf", key)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	token, _, err := signer.Generate("avatar:1", "avatar_1.png")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	subject, key, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "avatar:1", subject)
	assert.Equal(t, "avatar_1.png", key)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("resume:3", "resume_3.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[2] = "b3RoZXIucGRm"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, _, _, err = signer.Parse("not-a-token", false)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	other := NewSignedURLSigner("different", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.ErrorIs(t, err, ErrTokenSignature)
}
