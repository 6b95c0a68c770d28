// Package ribosome defines the contract app validation invokes to run
// a DNA's integrity zome validate callbacks (§6: "Ribosome"). The core
// runtime never executes WASM itself — it is an external collaborator
// reached through this interface, the same way the spec treats it.
package ribosome

import (
	"context"

	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
)

// IntegrityZome identifies one of a DNA's validation-rule-bearing
// zomes.
type IntegrityZome struct {
	Name      string
	ZomeIndex uint8
}

// HostAccess carries the context a validate callback may call back
// into (get/must_get host functions resolve against this space on
// behalf of the author under validation).
type HostAccess struct {
	Space  holo.DnaHash
	Author holo.AgentPubKey
}

// ValidateInvocation is the op being validated plus the zome(s)
// app validation decided must see it.
type ValidateInvocation struct {
	Zomes []IntegrityZome
	Op    holo.DhtOp
}

// Ribosome is the per-DNA surface app validation depends on. A real
// implementation loads and executes WASM; Implementations are looked
// up per-DNA by the caller (pkg/space), not by this package.
type Ribosome interface {
	// GetIntegrityZome resolves a zome by its DNA-assigned index.
	GetIntegrityZome(index uint8) (IntegrityZome, bool)
	// IntegrityZomes lists every integrity zome the DNA declares, in
	// declaration order — used when a check must run against all of
	// them (non-app entries, RegisterAgentActivity).
	IntegrityZomes() []IntegrityZome
	// RunValidate invokes the callback and returns its outcome,
	// already normalized to herr.AppValidationOutcome's vocabulary.
	RunValidate(ctx context.Context, access HostAccess, invocation ValidateInvocation) (herr.AppValidationOutcome, error)
}
