// Package keystore models the core's signing-key custody boundary
// (§1: "crypto key material storage" is an external collaborator).
// Keystore is an interface so the conductor can be wired to a real
// Lair server; DangerTest is the in-memory ed25519 implementation
// named in §6 for development and tests, adapted from the teacher's
// pkg/security AES-GCM secret-wrapping pattern.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/holochain/holochain-core/pkg/holo"
)

// Keystore is the signing surface the core depends on. A real
// implementation (LairServerInProc / LairServer, per §6) lives outside
// this module; only the interface and a throwaway in-memory
// implementation are provided here.
type Keystore interface {
	// NewAgentKey generates and custodies a new signing keypair,
	// returning its public half as an AgentPubKey.
	NewAgentKey() (holo.AgentPubKey, error)
	// Sign produces a signature over msg under agent's private key.
	Sign(agent holo.AgentPubKey, msg []byte) ([]byte, error)
	// Verify checks a signature produced by Sign.
	Verify(agent holo.AgentPubKey, msg, sig []byte) bool
}

// DangerTest is an in-memory keystore that generates and holds real
// ed25519 keys for the process lifetime. It satisfies Keystore for
// development and tests; the name mirrors the config enum (§6)
// deliberately, so operators cannot mistake it for production custody.
type DangerTest struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey // keyed by AgentPubKey.String()
}

// NewDangerTest constructs an empty in-memory keystore.
func NewDangerTest() *DangerTest {
	return &DangerTest{keys: make(map[string]ed25519.PrivateKey)}
}

func (d *DangerTest) NewAgentKey() (holo.AgentPubKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return holo.AgentPubKey{}, fmt.Errorf("keystore: generate key: %w", err)
	}
	agent := holo.NewAgentPubKey(pub)

	d.mu.Lock()
	d.keys[agent.String()] = priv
	d.mu.Unlock()

	return agent, nil
}

func (d *DangerTest) Sign(agent holo.AgentPubKey, msg []byte) ([]byte, error) {
	d.mu.RLock()
	priv, ok := d.keys[agent.String()]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("keystore: unknown agent %s", agent)
	}
	return ed25519.Sign(priv, msg), nil
}

func (d *DangerTest) Verify(agent holo.AgentPubKey, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(agent.Digest()), msg, sig)
}
