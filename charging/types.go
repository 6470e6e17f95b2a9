/*
Package charging implements the EV charging payment program: chargers,
consumer accounts, session escrows and the session audit trail.

PURPOSE:
  A provider registers a Charger. A consumer initializes an Account, funds
  an Escrow for a session (optionally redeeming reward credits for a
  discount), and the escrow is later released to the charger owner. Every
  Nth currency-only funding earns the consumer a credit. Completed sessions
  are recorded as immutable ChargingSession records.

RECORDS (types.go):
  Charger:         provider listing, keyed by name
  Account:         per-consumer counters, keyed by "account" + identity
  Escrow:          funds held for one session, keyed by
                   "escrow" + identity + charger + session id
  ChargingSession: audit record, keyed by "session" + identity + timestamp

ESCROW STATE MACHINE:
  Funding -> Held -> Released (terminal)

  There is no cancel. Funds that reach an escrow leave it only through
  Release, exactly once.

FOOTPRINTS:
  Each record kind has a fixed allocated size (8-byte discriminator plus
  length-prefixed string caps). The size determines the record's reserve.

SEE ALSO:
  - program.go: Program, the entry point for every operation
  - escrow.go: Funding and release
  - ledger/: Record store contract
*/
package charging

import (
	"github.com/shopspring/decimal"
	"github.com/warp/charge-ledger/ledger"
)

// =============================================================================
// RECORD KINDS
// =============================================================================

const (
	KindCharger ledger.Kind = "charger"
	KindAccount ledger.Kind = "account"
	KindEscrow  ledger.Kind = "escrow"
	KindSession ledger.Kind = "session"
)

// =============================================================================
// FIELD LIMITS AND FOOTPRINTS
// =============================================================================

const (
	MaxNameLen           = 50
	MaxAddressLen        = 100
	MaxCityLen           = 50
	MaxStateLen          = 20
	MaxZipLen            = 10
	MaxDescriptionLen    = 200
	MaxChargerTypeLen    = 50
	MaxConnectorTypesLen = 50
	MaxSessionIDLen      = 64
)

const (
	discriminatorLen = 8
	identityLen      = 32
	u64Len           = 8
	u32Len           = 4
	strPrefixLen     = 4
	optDecimalLen    = 1 + 16
)

// ChargerSize is the allocated footprint of a Charger record.
const ChargerSize = discriminatorLen +
	identityLen + // owner
	strPrefixLen + MaxNameLen +
	strPrefixLen + MaxAddressLen +
	strPrefixLen + MaxCityLen +
	strPrefixLen + MaxStateLen +
	strPrefixLen + MaxZipLen +
	strPrefixLen + MaxDescriptionLen +
	strPrefixLen + MaxChargerTypeLen +
	u64Len + // power
	u64Len + // price
	strPrefixLen + MaxConnectorTypesLen +
	optDecimalLen*2 // latitude, longitude

// AccountSize is the allocated footprint of an Account record.
const AccountSize = discriminatorLen + identityLen + u32Len + u64Len*4

// EscrowSize is the allocated footprint of an Escrow record.
const EscrowSize = discriminatorLen +
	identityLen*3 + // user, owner, charger
	strPrefixLen + MaxSessionIDLen +
	u64Len + // amount
	1 // is_released

// SessionSize is the allocated footprint of a ChargingSession record.
const SessionSize = discriminatorLen +
	identityLen*2 +
	strPrefixLen + MaxNameLen +
	u64Len*4 // power, price_paid, minutes, timestamp

// =============================================================================
// CHARGER
// =============================================================================

// Charger is a provider's listing. Owner is set once at creation.
type Charger struct {
	Address        ledger.Address      `json:"-"`
	Owner          ledger.Identity     `json:"owner"`
	Name           string              `json:"name"`
	StreetAddress  string              `json:"address"`
	City           string              `json:"city"`
	State          string              `json:"state"`
	Zip            string              `json:"zip"`
	Description    string              `json:"description"`
	ChargerType    string              `json:"charger_type"`
	Power          uint64              `json:"power"`
	Price          uint64              `json:"price"` // minor units per session baseline
	ConnectorTypes string              `json:"connector_types"`
	Latitude       decimal.NullDecimal `json:"latitude"`
	Longitude      decimal.NullDecimal `json:"longitude"`
}

// ChargerParams carries every caller-supplied Charger field.
type ChargerParams struct {
	Name           string
	StreetAddress  string
	City           string
	State          string
	Zip            string
	Description    string
	ChargerType    string
	Power          uint64
	Price          uint64
	ConnectorTypes string
	Latitude       decimal.NullDecimal
	Longitude      decimal.NullDecimal
}

// =============================================================================
// ACCOUNT
// =============================================================================

// Account tracks one consumer's usage and reward state.
type Account struct {
	Address            ledger.Address  `json:"-"`
	Authority          ledger.Identity `json:"authority"`
	ChargeCount        uint32          `json:"charge_count"`
	RewardBalance      uint64          `json:"reward_balance"` // credits earned through accrual
	TotalPowerConsumed uint64          `json:"total_power_consumed"`
	TotalPricePaid     uint64          `json:"total_price_paid"`
	TotalSessions      uint64          `json:"total_sessions"`
}

// =============================================================================
// ESCROW
// =============================================================================

// EscrowState is the derived state of an escrow record.
type EscrowState string

const (
	EscrowHeld     EscrowState = "held"
	EscrowReleased EscrowState = "released"
)

// Escrow holds the currency of one funding event until release.
// Amount is the exact net deposit; the backing balance also holds the reserve.
type Escrow struct {
	Address    ledger.Address  `json:"-"`
	User       ledger.Identity `json:"user"`
	Owner      ledger.Identity `json:"owner"`
	Charger    ledger.Address  `json:"charger"`
	SessionID  string          `json:"session_id"`
	Amount     uint64          `json:"amount"`
	IsReleased bool            `json:"is_released"`
}

func (e *Escrow) State() EscrowState {
	if e.IsReleased {
		return EscrowReleased
	}
	return EscrowHeld
}

// =============================================================================
// CHARGING SESSION
// =============================================================================

// ChargingSession is an immutable audit record of a completed session.
type ChargingSession struct {
	Address     ledger.Address  `json:"-"`
	User        ledger.Identity `json:"user"`
	Charger     ledger.Address  `json:"charger"`
	ChargerName string          `json:"charger_name"`
	Power       uint64          `json:"power"`
	PricePaid   uint64          `json:"price_paid"`
	Minutes     uint64          `json:"minutes"`
	Timestamp   int64           `json:"timestamp"`
}
