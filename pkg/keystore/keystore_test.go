package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDangerTestSignAndVerify(t *testing.T) {
	ks := NewDangerTest()
	agent, err := ks.NewAgentKey()
	require.NoError(t, err)

	msg := []byte("an action's canonical bytes")
	sig, err := ks.Sign(agent, msg)
	require.NoError(t, err)

	assert.True(t, ks.Verify(agent, msg, sig))
	assert.False(t, ks.Verify(agent, []byte("tampered"), sig))
}

func TestSignUnknownAgentFails(t *testing.T) {
	ks := NewDangerTest()
	other := NewDangerTest()
	agent, err := other.NewAgentKey()
	require.NoError(t, err)

	_, err = ks.Sign(agent, []byte("x"))
	assert.Error(t, err)
}

func TestDeviceKeyLockUnlockRoundTrip(t *testing.T) {
	key, err := GenerateDeviceKey()
	require.NoError(t, err)

	plaintext := []byte("passphrase for dht-<dna>.sqlite")
	locked, err := key.Lock(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, locked)

	unlocked, err := key.Unlock(locked)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unlocked)
}

func TestDeriveDeviceKeyDeterministic(t *testing.T) {
	a := DeriveDeviceKey("tag-1")
	b := DeriveDeviceKey("tag-1")
	c := DeriveDeviceKey("tag-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
