package charging

import (
	"context"

	"github.com/warp/charge-ledger/ledger"
	"github.com/warp/charge-ledger/rewards"
	"go.uber.org/zap"
)

// Program executes charging operations against a ledger.TxStore. Each public
// operation is one WithTx call: it commits fully or leaves no trace.
type Program struct {
	id            ledger.Identity
	store         ledger.TxStore
	rent          ledger.Rent
	minter        *rewards.Minter
	mintAuthority ledger.Identity
	logger        *zap.Logger
}

// Options configures a Program.
type Options struct {
	// ProgramID scopes every derived address.
	ProgramID ledger.Identity
	Store     ledger.TxStore
	// Rent defaults to ledger.DefaultRent when zero; reserves are always
	// charged.
	Rent ledger.Rent
	// Minter defaults to one credit every rewards.DefaultCadence fundings,
	// minted by an authority derived from the program id.
	Minter *rewards.Minter
	// CreditMintAuthority is the identity the credit ledger accepts for
	// minting. Defaults to the Minter's authority.
	CreditMintAuthority ledger.Identity
	Logger              *zap.Logger
}

func NewProgram(opts Options) *Program {
	p := &Program{
		id:            opts.ProgramID,
		store:         opts.Store,
		rent:          opts.Rent,
		minter:        opts.Minter,
		mintAuthority: opts.CreditMintAuthority,
		logger:        opts.Logger,
	}
	if p.rent == (ledger.Rent{}) {
		p.rent = ledger.DefaultRent
	}
	if p.minter == nil {
		authority := rewards.NewMintAuthority(ledger.IdentityFromSeed("mint:" + p.id.String()))
		p.minter = rewards.NewMinter(rewards.CadencePolicy{Every: rewards.DefaultCadence}, authority)
	}
	if p.mintAuthority.IsZero() {
		p.mintAuthority = p.minter.Authority().Identity()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

func (p *Program) ID() ledger.Identity { return p.id }
func (p *Program) Rent() ledger.Rent   { return p.rent }

// =============================================================================
// ADDRESS DERIVATION
// =============================================================================

func (p *Program) ChargerAddress(name string) ledger.Address {
	return ledger.DeriveAddress(p.id, []byte(name))
}

func (p *Program) AccountAddress(authority ledger.Identity) ledger.Address {
	return ledger.DeriveAddress(p.id, []byte("account"), authority[:])
}

func (p *Program) EscrowAddress(user ledger.Identity, charger ledger.Address, sessionID string) ledger.Address {
	return ledger.DeriveAddress(p.id, []byte("escrow"), user[:], charger[:], []byte(sessionID))
}

func (p *Program) SessionAddress(user ledger.Identity, timestamp int64) ledger.Address {
	return ledger.DeriveAddress(p.id, []byte("session"), user[:], ledger.Uint64Seed(uint64(timestamp)))
}

// =============================================================================
// WALLETS
// =============================================================================

// Wallet is a read-only view of an identity's balances.
type Wallet struct {
	Identity ledger.Identity `json:"identity"`
	Balance  uint64          `json:"balance"`
	Credits  uint64          `json:"credits"`
}

// Wallet returns the native and credit balances of id.
func (p *Program) Wallet(ctx context.Context, id ledger.Identity) (*Wallet, error) {
	bal, err := ledger.NewBank(p.store).Balance(ctx, id.Wallet())
	if err != nil {
		return nil, err
	}
	credits, err := p.credits(p.store).BalanceOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Wallet{Identity: id, Balance: bal, Credits: credits}, nil
}

// Airdrop deposits new currency into id's wallet. Dev and test funding only.
func (p *Program) Airdrop(ctx context.Context, id ledger.Identity, amount uint64) error {
	err := p.store.WithTx(ctx, func(tx ledger.Store) error {
		return ledger.NewBank(tx).Deposit(ctx, id.Wallet(), amount)
	})
	if err != nil {
		return err
	}
	p.logger.Info("airdrop", zap.Stringer("identity", id), zap.Uint64("amount", amount))
	return nil
}

// Balance returns the native balance at any address (wallet or record).
func (p *Program) Balance(ctx context.Context, addr ledger.Address) (uint64, error) {
	return ledger.NewBank(p.store).Balance(ctx, addr)
}

func (p *Program) credits(s ledger.Store) *ledger.CreditLedger {
	return ledger.NewCreditLedger(s, p.mintAuthority)
}
