package ribosome

import (
	"context"

	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
)

// Fake is an in-memory Ribosome double for tests that don't want to
// stand up real WASM. Results is consulted by op hash; Default is
// returned for any op not present in Results.
type Fake struct {
	Zomes   []IntegrityZome
	Results map[holo.DhtOpHash]herr.AppValidationOutcome
	Default herr.AppValidationOutcome

	// Calls records every invocation, for assertions.
	Calls []ValidateInvocation
}

// NewFake builds a Fake that accepts everything by default.
func NewFake(zomes ...IntegrityZome) *Fake {
	return &Fake{
		Zomes:   zomes,
		Results: make(map[holo.DhtOpHash]herr.AppValidationOutcome),
		Default: herr.AppValidationOutcome{Kind: herr.AppAccepted},
	}
}

func (f *Fake) GetIntegrityZome(index uint8) (IntegrityZome, bool) {
	for _, z := range f.Zomes {
		if z.ZomeIndex == index {
			return z, true
		}
	}
	return IntegrityZome{}, false
}

func (f *Fake) IntegrityZomes() []IntegrityZome { return f.Zomes }

func (f *Fake) RunValidate(ctx context.Context, access HostAccess, invocation ValidateInvocation) (herr.AppValidationOutcome, error) {
	f.Calls = append(f.Calls, invocation)
	if out, ok := f.Results[invocation.Op.Hash()]; ok {
		return out, nil
	}
	return f.Default, nil
}
