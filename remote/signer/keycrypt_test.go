package signer_test

import (
	"testing"

	"github.com/nostrsync/ngit/remote/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivHex = "91ba716fa9e7ea2fcbad360cf4f8e0d312f73984da63d90f524ad61a6a1e7dbe"

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	blob, err := signer.EncryptKey(testPrivHex, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, testPrivHex, blob)

	got, err := signer.DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testPrivHex, got)
}

func TestDecryptKeyWrongPassphrase(t *testing.T) {
	blob, err := signer.EncryptKey(testPrivHex, "hunter2")
	require.NoError(t, err)

	_, err = signer.DecryptKey(blob, "hunter3")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsNonHex(t *testing.T) {
	_, err := signer.EncryptKey("not hex at all", "hunter2")
	assert.Error(t, err)
}

func TestEncryptKeyNonDeterministicBlob(t *testing.T) {
	a, err := signer.EncryptKey(testPrivHex, "hunter2")
	require.NoError(t, err)
	b, err := signer.EncryptKey(testPrivHex, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
