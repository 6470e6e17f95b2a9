/*
handlers.go - HTTP API handlers for the charging program

PURPOSE:
  Exposes the charging program via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to charging.Program.

ENDPOINTS:
  Chargers:
    GET    /api/chargers                   List all chargers
    POST   /api/chargers                   Register charger (signer = owner)
    GET    /api/chargers/{address}         Get charger
    PUT    /api/chargers/{address}         Update charger (owner only)

  Accounts:
    POST   /api/accounts                   Initialize signer's account
    GET    /api/accounts/{identity}        Get account
    GET    /api/accounts/{identity}/sessions  Session history

  Escrows:
    POST   /api/escrows                    Open and fund a session escrow
    GET    /api/escrows/{address}          Get escrow
    POST   /api/escrows/{address}/release  Release to the charger owner

  Sessions:
    POST   /api/sessions                   Record a completed session
    GET    /api/sessions/{address}         Get session

  Wallets:
    GET    /api/wallets/{identity}         Currency and credit balances

  Dev (EnableDevEndpoints only):
    POST   /api/dev/identities             Derive an identity from a seed
    POST   /api/wallets/{identity}/airdrop Mint currency into a wallet
    POST   /api/admin/reset                Wipe the store

SIGNER:
  Mutating endpoints read the caller identity from the X-Signer header
  (64 hex chars). The gateway in front of this service verifies the
  signature; this layer trusts the header.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing signer
  - 403: Signer fails an ownership or authority check
  - 404: Record not found
  - 409: Key already exists, escrow already released
  - 422: Funds, credits, discount or arithmetic limits
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/warp/charge-ledger/charging"
	"github.com/warp/charge-ledger/ledger"
	"go.uber.org/zap"
)

// SignerHeader carries the authenticated caller identity.
const SignerHeader = "X-Signer"

var (
	errMissingSigner = errors.New("missing " + SignerHeader + " header")
	errInternal      = errors.New("internal error")
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter wipes a store. Implemented by both store backends.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Program *charging.Program
	Logger  *zap.Logger

	// DefaultCreditValue prices a credit when a funding request omits it.
	DefaultCreditValue uint64
	// DevEndpoints enables airdrop, identity derivation and reset.
	DevEndpoints bool
	Resetter     Resetter
}

// NewHandler creates a handler over program. A nil logger discards logs.
func NewHandler(program *charging.Program, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Program: program, Logger: logger}
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"program": h.Program.ID().String(),
	})
}

// =============================================================================
// CHARGER HANDLERS
// =============================================================================

// ListChargers returns all registered chargers.
// GET /api/chargers
func (h *Handler) ListChargers(w http.ResponseWriter, r *http.Request) {
	chargers, err := h.Program.Chargers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list chargers", err)
		return
	}

	dtos := make([]ChargerDTO, len(chargers))
	for i := range chargers {
		dtos[i] = toChargerDTO(&chargers[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCharger registers a charger owned by the signer.
// POST /api/chargers
func (h *Handler) CreateCharger(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	var req ChargerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	charger, err := h.Program.CreateCharger(r.Context(), signer, req.params())
	if err != nil {
		h.writeDomainError(w, r, "Failed to create charger", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChargerDTO(charger))
}

// GetCharger returns one charger.
// GET /api/chargers/{address}
func (h *Handler) GetCharger(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	charger, err := h.Program.Charger(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get charger", err)
		return
	}
	writeJSON(w, http.StatusOK, toChargerDTO(charger))
}

// UpdateCharger overwrites a charger's fields. Owner only.
// PUT /api/chargers/{address}
func (h *Handler) UpdateCharger(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	var req ChargerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	charger, err := h.Program.UpdateCharger(r.Context(), signer, addr, req.params())
	if err != nil {
		h.writeDomainError(w, r, "Failed to update charger", err)
		return
	}
	writeJSON(w, http.StatusOK, toChargerDTO(charger))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// InitializeAccount creates the signer's account.
// POST /api/accounts
func (h *Handler) InitializeAccount(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	account, err := h.Program.InitializeAccount(r.Context(), signer)
	if err != nil {
		h.writeDomainError(w, r, "Failed to initialize account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns the account of an identity.
// GET /api/accounts/{identity}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	account, err := h.Program.Account(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// ListSessions returns an identity's sessions ordered by timestamp.
// GET /api/accounts/{identity}/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	sessions, err := h.Program.Sessions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list sessions", err)
		return
	}
	dtos := make([]SessionDTO, len(sessions))
	for i := range sessions {
		dtos[i] = toSessionDTO(&sessions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ESCROW HANDLERS
// =============================================================================

// FundEscrow opens and funds a session escrow for the signer.
// POST /api/escrows
func (h *Handler) FundEscrow(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	var req FundEscrowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	creditValue := h.DefaultCreditValue
	if req.CreditValue != nil {
		creditValue = *req.CreditValue
	}

	res, err := h.Program.OpenAndFund(r.Context(), charging.FundRequest{
		Signer:          signer,
		Charger:         req.Charger,
		SessionID:       sessionID,
		PaymentAmount:   req.PaymentAmount,
		CreditsToRedeem: req.CreditsRedeemed,
		CreditValue:     creditValue,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to fund escrow", err)
		return
	}

	writeJSON(w, http.StatusCreated, FundEscrowResponse{
		Escrow:        toEscrowDTO(res.Escrow),
		Discount:      res.Split.Discount,
		NetAmount:     res.Split.Net,
		CreditsMinted: res.CreditsMinted,
		ChargeCount:   res.Account.ChargeCount,
	})
}

// GetEscrow returns one escrow.
// GET /api/escrows/{address}
func (h *Handler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	escrow, err := h.Program.Escrow(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get escrow", err)
		return
	}
	writeJSON(w, http.StatusOK, toEscrowDTO(escrow))
}

// ReleaseEscrow pays an escrow out to its owner.
// POST /api/escrows/{address}/release
func (h *Handler) ReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	var req ReleaseEscrowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	release := charging.ReleaseRequest{Signer: signer, Escrow: addr, Amount: req.Amount}
	if req.Payee != nil {
		release.Payee = *req.Payee
	}
	settlement, err := h.Program.Release(r.Context(), release)
	if err != nil {
		h.writeDomainError(w, r, "Failed to release escrow", err)
		return
	}

	writeJSON(w, http.StatusOK, SettlementDTO{
		Escrow: toEscrowDTO(settlement.Escrow),
		Payee:  settlement.Payee,
		Payout: settlement.Payout,
	})
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// RecordSession appends a completed session for the signer.
// POST /api/sessions
func (h *Handler) RecordSession(w http.ResponseWriter, r *http.Request) {
	signer, ok := h.requireSigner(w, r)
	if !ok {
		return
	}
	var req RecordSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ts := time.Now().Unix()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	session, err := h.Program.RecordSession(r.Context(), charging.RecordSessionRequest{
		Signer:      signer,
		Charger:     req.Charger,
		ChargerName: req.ChargerName,
		Power:       req.Power,
		PricePaid:   req.PricePaid,
		Minutes:     req.Minutes,
		Timestamp:   ts,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to record session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// GetSession returns one session record.
// GET /api/sessions/{address}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	session, err := h.Program.Session(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// =============================================================================
// WALLET AND DEV HANDLERS
// =============================================================================

// GetWallet returns currency and credit balances.
// GET /api/wallets/{identity}
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	wallet, err := h.Program.Wallet(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Airdrop mints currency into a wallet.
// POST /api/wallets/{identity}/airdrop
func (h *Handler) Airdrop(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r)
	if !ok {
		return
	}
	var req AirdropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Program.Airdrop(r.Context(), id, req.Amount); err != nil {
		h.writeDomainError(w, r, "Failed to airdrop", err)
		return
	}
	h.GetWallet(w, r)
}

// DeriveIdentity turns a seed into an identity for local testing.
// POST /api/dev/identities
func (h *Handler) DeriveIdentity(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Seed == "" {
		writeError(w, http.StatusBadRequest, "seed is required", nil)
		return
	}
	id := ledger.IdentityFromSeed(req.Seed)
	writeJSON(w, http.StatusOK, IdentityDTO{Identity: id, Account: h.Program.AccountAddress(id)})
}

// ResetDatabase wipes all records and balances.
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "Reset not supported by this store", nil)
		return
	}
	if err := h.Resetter.Reset(r.Context()); err != nil {
		h.writeDomainError(w, r, "Failed to reset database", err)
		return
	}
	h.Logger.Warn("store reset", zap.String("request_id", middleware.GetReqID(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) requireSigner(w http.ResponseWriter, r *http.Request) (ledger.Identity, bool) {
	raw := r.Header.Get(SignerHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "Signer required", errMissingSigner)
		return ledger.Identity{}, false
	}
	id, err := ledger.ParseIdentity(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid signer", err)
		return ledger.Identity{}, false
	}
	return id, true
}

func addressParam(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	addr, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid address", err)
		return ledger.Address{}, false
	}
	return addr, true
}

func identityParam(w http.ResponseWriter, r *http.Request) (ledger.Identity, bool) {
	id, err := ledger.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid identity", err)
		return ledger.Identity{}, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps program errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrKeyAlreadyExists), errors.Is(err, ledger.ErrAlreadyReleased):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNotEnoughCredits),
		errors.Is(err, ledger.ErrInvalidDiscount),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrArithmeticUnderflow):
		return http.StatusUnprocessableEntity
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, fields...)
		// Store failures are not echoed to clients.
		writeError(w, status, message, errInternal)
		return
	}
	h.Logger.Info(message, fields...)
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
