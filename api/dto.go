/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the program's record types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

IDENTIFIERS:
  Identities and record addresses are 32-byte values rendered as 64 hex
  characters. Every record DTO carries its derived address as "id".

AMOUNTS:
  All amounts are unsigned integers in minor currency units. Latitude and
  longitude are decimal strings or null.

SEE ALSO:
  - handlers.go: Uses these types
  - charging/types.go: Record types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/charge-ledger/charging"
	"github.com/warp/charge-ledger/ledger"
)

// =============================================================================
// CHARGERS
// =============================================================================

// ChargerRequest is the body of create and update. Every field is written.
type ChargerRequest struct {
	Name           string              `json:"name"`
	Address        string              `json:"address"`
	City           string              `json:"city"`
	State          string              `json:"state"`
	Zip            string              `json:"zip"`
	Description    string              `json:"description"`
	ChargerType    string              `json:"charger_type"`
	Power          uint64              `json:"power"`
	Price          uint64              `json:"price"`
	ConnectorTypes string              `json:"connector_types"`
	Latitude       decimal.NullDecimal `json:"latitude"`
	Longitude      decimal.NullDecimal `json:"longitude"`
}

func (r ChargerRequest) params() charging.ChargerParams {
	return charging.ChargerParams{
		Name:           r.Name,
		StreetAddress:  r.Address,
		City:           r.City,
		State:          r.State,
		Zip:            r.Zip,
		Description:    r.Description,
		ChargerType:    r.ChargerType,
		Power:          r.Power,
		Price:          r.Price,
		ConnectorTypes: r.ConnectorTypes,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
	}
}

// ChargerDTO represents a charger in API responses.
type ChargerDTO struct {
	ID             ledger.Address      `json:"id"`
	Owner          ledger.Identity     `json:"owner"`
	Name           string              `json:"name"`
	Address        string              `json:"address"`
	City           string              `json:"city"`
	State          string              `json:"state"`
	Zip            string              `json:"zip"`
	Description    string              `json:"description"`
	ChargerType    string              `json:"charger_type"`
	Power          uint64              `json:"power"`
	Price          uint64              `json:"price"`
	ConnectorTypes string              `json:"connector_types"`
	Latitude       decimal.NullDecimal `json:"latitude"`
	Longitude      decimal.NullDecimal `json:"longitude"`
}

func toChargerDTO(c *charging.Charger) ChargerDTO {
	return ChargerDTO{
		ID:             c.Address,
		Owner:          c.Owner,
		Name:           c.Name,
		Address:        c.StreetAddress,
		City:           c.City,
		State:          c.State,
		Zip:            c.Zip,
		Description:    c.Description,
		ChargerType:    c.ChargerType,
		Power:          c.Power,
		Price:          c.Price,
		ConnectorTypes: c.ConnectorTypes,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents a consumer account.
type AccountDTO struct {
	ID                 ledger.Address  `json:"id"`
	Authority          ledger.Identity `json:"authority"`
	ChargeCount        uint32          `json:"charge_count"`
	RewardBalance      uint64          `json:"reward_balance"`
	TotalPowerConsumed uint64          `json:"total_power_consumed"`
	TotalPricePaid     uint64          `json:"total_price_paid"`
	TotalSessions      uint64          `json:"total_sessions"`
}

func toAccountDTO(a *charging.Account) AccountDTO {
	return AccountDTO{
		ID:                 a.Address,
		Authority:          a.Authority,
		ChargeCount:        a.ChargeCount,
		RewardBalance:      a.RewardBalance,
		TotalPowerConsumed: a.TotalPowerConsumed,
		TotalPricePaid:     a.TotalPricePaid,
		TotalSessions:      a.TotalSessions,
	}
}

// =============================================================================
// ESCROWS
// =============================================================================

// FundEscrowRequest opens and funds a session escrow. SessionID defaults to
// a fresh UUID; CreditValue defaults to the server's configured value.
type FundEscrowRequest struct {
	Charger         ledger.Address `json:"charger"`
	SessionID       string         `json:"session_id"`
	PaymentAmount   uint64         `json:"payment_amount"`
	CreditsRedeemed uint64         `json:"credits_redeemed"`
	CreditValue     *uint64        `json:"credit_value,omitempty"`
}

// EscrowDTO represents an escrow record.
type EscrowDTO struct {
	ID         ledger.Address       `json:"id"`
	User       ledger.Identity      `json:"user"`
	Owner      ledger.Identity      `json:"owner"`
	Charger    ledger.Address       `json:"charger"`
	SessionID  string               `json:"session_id"`
	Amount     uint64               `json:"amount"`
	IsReleased bool                 `json:"is_released"`
	State      charging.EscrowState `json:"state"`
}

func toEscrowDTO(e *charging.Escrow) EscrowDTO {
	return EscrowDTO{
		ID:         e.Address,
		User:       e.User,
		Owner:      e.Owner,
		Charger:    e.Charger,
		SessionID:  e.SessionID,
		Amount:     e.Amount,
		IsReleased: e.IsReleased,
		State:      e.State(),
	}
}

// FundEscrowResponse reports the escrow and the payment breakdown.
type FundEscrowResponse struct {
	Escrow        EscrowDTO `json:"escrow"`
	Discount      uint64    `json:"discount"`
	NetAmount     uint64    `json:"net_amount"`
	CreditsMinted uint64    `json:"credits_minted"`
	ChargeCount   uint32    `json:"charge_count"`
}

// ReleaseEscrowRequest pays the escrow out. Payee is required when the
// signer is the consumer rather than the owner.
type ReleaseEscrowRequest struct {
	Amount uint64           `json:"amount"`
	Payee  *ledger.Identity `json:"payee,omitempty"`
}

// SettlementDTO reports a completed release.
type SettlementDTO struct {
	Escrow EscrowDTO       `json:"escrow"`
	Payee  ledger.Identity `json:"payee"`
	Payout uint64          `json:"payout"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// RecordSessionRequest records a completed session. Timestamp defaults to now
// (unix seconds).
type RecordSessionRequest struct {
	Charger     ledger.Address `json:"charger"`
	ChargerName string         `json:"charger_name"`
	Power       uint64         `json:"power"`
	PricePaid   uint64         `json:"price_paid"`
	Minutes     uint64         `json:"minutes"`
	Timestamp   *int64         `json:"timestamp,omitempty"`
}

// SessionDTO represents a charging session record.
type SessionDTO struct {
	ID          ledger.Address  `json:"id"`
	User        ledger.Identity `json:"user"`
	Charger     ledger.Address  `json:"charger"`
	ChargerName string          `json:"charger_name"`
	Power       uint64          `json:"power"`
	PricePaid   uint64          `json:"price_paid"`
	Minutes     uint64          `json:"minutes"`
	Timestamp   int64           `json:"timestamp"`
}

func toSessionDTO(s *charging.ChargingSession) SessionDTO {
	return SessionDTO{
		ID:          s.Address,
		User:        s.User,
		Charger:     s.Charger,
		ChargerName: s.ChargerName,
		Power:       s.Power,
		PricePaid:   s.PricePaid,
		Minutes:     s.Minutes,
		Timestamp:   s.Timestamp,
	}
}

// =============================================================================
// WALLETS AND DEV
// =============================================================================

// AirdropRequest funds a wallet with new currency (dev only).
type AirdropRequest struct {
	Amount uint64 `json:"amount"`
}

// IdentityRequest derives a dev identity from a seed string.
type IdentityRequest struct {
	Seed string `json:"seed"`
}

// IdentityDTO is a derived identity and its account address.
type IdentityDTO struct {
	Identity ledger.Identity `json:"identity"`
	Account  ledger.Address  `json:"account"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
