package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// DeviceKey is the 32-byte key every per-space database is encrypted
// under (§6 persisted layout: "all encrypted with the device key").
type DeviceKey [32]byte

// GenerateDeviceKey produces a fresh random device key, used when
// config.DangerGenerateThrowawayDeviceSeed is set.
func GenerateDeviceKey() (DeviceKey, error) {
	var k DeviceKey
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return DeviceKey{}, fmt.Errorf("keystore: generate device key: %w", err)
	}
	return k, nil
}

// DeriveDeviceKey derives a device key from a lair device-seed tag
// deterministically, so the same tag always unlocks the same data root.
func DeriveDeviceKey(seedTag string) DeviceKey {
	return sha256.Sum256([]byte(seedTag))
}

// Lock wraps plaintext (the content of db.key, or a database passphrase)
// with AES-256-GCM under the device key, nonce prepended.
func (k DeviceKey) Lock(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("keystore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Unlock reverses Lock.
func (k DeviceKey) Unlock(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("keystore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("keystore: ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ct, nil)
}
