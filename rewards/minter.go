package rewards

import (
	"context"
	"fmt"

	"github.com/warp/charge-ledger/ledger"
)

// MintAuthority is the program-held credential allowed to mint credits.
type MintAuthority struct {
	identity ledger.Identity
}

// NewMintAuthority wraps the identity registered as the credit mint authority.
func NewMintAuthority(identity ledger.Identity) MintAuthority {
	return MintAuthority{identity: identity}
}

func (a MintAuthority) Identity() ledger.Identity { return a.identity }

// Minter applies a Policy and mints with its authority.
type Minter struct {
	policy    Policy
	authority MintAuthority
}

func NewMinter(policy Policy, authority MintAuthority) *Minter {
	if policy == nil {
		policy = NoRewards{}
	}
	return &Minter{policy: policy, authority: authority}
}

func (m *Minter) Authority() MintAuthority { return m.authority }

// Accrue mints one credit to consumer if the policy says this funding event
// earns it. Returns the number of credits minted. Call it on the Store of the
// surrounding transaction: a mint failure must fail the whole funding.
func (m *Minter) Accrue(ctx context.Context, credits *ledger.CreditLedger, consumer ledger.Identity, preCount uint32, redeemed bool) (uint64, error) {
	if !m.policy.ShouldMint(preCount, redeemed) {
		return 0, nil
	}
	if err := credits.Mint(ctx, m.authority.Identity(), consumer, 1); err != nil {
		return 0, fmt.Errorf("accrue reward: %w", err)
	}
	return 1, nil
}
