/*
Package rewards implements the loyalty side of the charging program:
deciding when a funding event earns a redeemable credit, and minting it.

ACCRUAL RULE:
  A consumer earns exactly one credit for every Nth currency-only funding
  event. The rule is evaluated on the charge count BEFORE it is
  incremented, so with N=4 the 4th, 8th, 12th ... funding events mint:

    pre-count:  0  1  2  3  4  5  6  7
    mints:      -  -  -  1  -  -  -  1

  A funding event that redeemed credits never earns a new one in the same
  operation, even when the count lands on the cadence.

DETERMINISTIC vs EVENT-BASED:
  CadencePolicy is deterministic: the reward schedule is a pure function of
  the charge count. NoRewards never mints (programs with loyalty disabled).

MINT AUTHORITY:
  Minting needs the program-held MintAuthority credential. It is injected
  into the Minter explicitly; there is no package-level signer.

SEE ALSO:
  - minter.go: Minter and MintAuthority
  - charging/escrow.go: Calls Minter.Accrue during funding
*/
package rewards

import "fmt"

// DefaultCadence is the number of paid funding events per earned credit.
const DefaultCadence uint32 = 4

// =============================================================================
// POLICY
// =============================================================================

// Policy decides whether a funding event earns a credit.
type Policy interface {
	// ShouldMint is called with the charge count before this event is counted.
	ShouldMint(preCount uint32, redeemed bool) bool
}

// CadencePolicy mints once every Every currency-only funding events.
type CadencePolicy struct {
	Every uint32
}

func (p CadencePolicy) ShouldMint(preCount uint32, redeemed bool) bool {
	if redeemed || p.Every == 0 {
		return false
	}
	// uint64 so preCount == MaxUint32 cannot wrap to zero
	return (uint64(preCount)+1)%uint64(p.Every) == 0
}

// NoRewards never mints.
type NoRewards struct{}

func (NoRewards) ShouldMint(uint32, bool) bool { return false }

// =============================================================================
// POLICY CONFIG - Built from YAML / JSON configuration
// =============================================================================

// PolicyConfig is the serialized form of a reward policy.
type PolicyConfig struct {
	Type  string `yaml:"type" json:"type"`   // "cadence" (default) or "none"
	Every uint32 `yaml:"every" json:"every"` // cadence; 0 means DefaultCadence
}

// Build returns the Policy described by the config.
func (c PolicyConfig) Build() (Policy, error) {
	switch c.Type {
	case "", "cadence":
		every := c.Every
		if every == 0 {
			every = DefaultCadence
		}
		return CadencePolicy{Every: every}, nil
	case "none":
		return NoRewards{}, nil
	default:
		return nil, fmt.Errorf("unknown reward policy type %q", c.Type)
	}
}
