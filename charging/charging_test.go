package charging_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charge-ledger/charging"
	"github.com/warp/charge-ledger/ledger"
	"github.com/warp/charge-ledger/ledger/store"
	"github.com/warp/charge-ledger/rewards"
	"github.com/warp/charge-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const startingBalance = 1_000_000_000_000

var (
	owner    = ledger.IdentityFromSeed("owner")
	user     = ledger.IdentityFromSeed("user")
	stranger = ledger.IdentityFromSeed("stranger")
	mintID   = ledger.IdentityFromSeed("mint")
)

type fixture struct {
	program *charging.Program
	store   ledger.TxStore
	charger *charging.Charger
}

func newProgram(t *testing.T, s ledger.TxStore) *charging.Program {
	t.Helper()
	return charging.NewProgram(charging.Options{
		ProgramID: ledger.IdentityFromSeed("program"),
		Store:     s,
		Minter:    rewards.NewMinter(rewards.CadencePolicy{Every: 4}, rewards.NewMintAuthority(mintID)),
	})
}

// newFixture funds owner and user, registers "Main-St-01" and the user's account.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return setupFixture(t, store.NewMemory())
}

func setupFixture(t *testing.T, s ledger.TxStore) *fixture {
	t.Helper()
	ctx := context.Background()
	p := newProgram(t, s)

	require.NoError(t, p.Airdrop(ctx, owner, startingBalance))
	require.NoError(t, p.Airdrop(ctx, user, startingBalance))

	charger, err := p.CreateCharger(ctx, owner, mainSt())
	require.NoError(t, err)
	_, err = p.InitializeAccount(ctx, user)
	require.NoError(t, err)

	return &fixture{program: p, store: s, charger: charger}
}

func mainSt() charging.ChargerParams {
	return charging.ChargerParams{
		Name:           "Main-St-01",
		StreetAddress:  "1 Main St",
		City:           "Springfield",
		State:          "IL",
		Zip:            "62701",
		Description:    "Two bays behind the library",
		ChargerType:    "DC Fast",
		Power:          150,
		Price:          1_000_000,
		ConnectorTypes: "CCS,CHAdeMO",
		Latitude:       decimal.NewNullDecimal(decimal.RequireFromString("39.7817")),
		Longitude:      decimal.NewNullDecimal(decimal.RequireFromString("-89.6501")),
	}
}

func (f *fixture) fund(t *testing.T, sessionID string, payment uint64) *charging.FundResult {
	t.Helper()
	res, err := f.program.OpenAndFund(context.Background(), charging.FundRequest{
		Signer:        user,
		Charger:       f.charger.Address,
		SessionID:     sessionID,
		PaymentAmount: payment,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) wallet(t *testing.T, id ledger.Identity) *charging.Wallet {
	t.Helper()
	w, err := f.program.Wallet(context.Background(), id)
	require.NoError(t, err)
	return w
}

func (f *fixture) account(t *testing.T) *charging.Account {
	t.Helper()
	a, err := f.program.Account(context.Background(), user)
	require.NoError(t, err)
	return a
}

func (f *fixture) mintCredits(t *testing.T, to ledger.Identity, n uint64) {
	t.Helper()
	ctx := context.Background()
	err := f.store.WithTx(ctx, func(tx ledger.Store) error {
		return ledger.NewCreditLedger(tx, mintID).Mint(ctx, mintID, to, n)
	})
	require.NoError(t, err)
}

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

func TestScenario_FundAndRelease(t *testing.T) {
	for name, s := range map[string]func(t *testing.T) ledger.TxStore{
		"memory": func(t *testing.T) ledger.TxStore { return store.NewMemory() },
		"sqlite": func(t *testing.T) ledger.TxStore {
			st, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
	} {
		t.Run(name, func(t *testing.T) {
			// GIVEN: Charger "Main-St-01" priced 1,000,000 and an initialized account
			// WHEN: The user funds 1,000,000 and the owner releases 1,000,000
			// THEN: The owner receives 1,000,000 and a second release fails

			ctx := context.Background()
			f := setupFixture(t, s(t))
			ownerBefore := f.wallet(t, owner).Balance

			res := f.fund(t, "session-1", 1_000_000)
			escrow := res.Escrow
			assert.Equal(t, uint64(1_000_000), escrow.Amount)
			assert.False(t, escrow.IsReleased)
			assert.Equal(t, charging.EscrowHeld, escrow.State())
			assert.Equal(t, owner, escrow.Owner)
			assert.Equal(t, uint32(1), f.account(t).ChargeCount)

			reserve := f.program.Rent().MinimumBalance(charging.EscrowSize)
			backing, err := f.program.Balance(ctx, escrow.Address)
			require.NoError(t, err)
			assert.Equal(t, 1_000_000+reserve, backing)

			settlement, err := f.program.Release(ctx, charging.ReleaseRequest{
				Signer: owner,
				Escrow: escrow.Address,
				Amount: 1_000_000,
			})
			require.NoError(t, err)
			assert.Equal(t, uint64(1_000_000), settlement.Payout)
			assert.Equal(t, owner, settlement.Payee)
			assert.True(t, settlement.Escrow.IsReleased)
			assert.Equal(t, ownerBefore+1_000_000, f.wallet(t, owner).Balance)

			backing, err = f.program.Balance(ctx, escrow.Address)
			require.NoError(t, err)
			assert.Equal(t, reserve, backing, "reserve stays with the record")

			stored, err := f.program.Escrow(ctx, escrow.Address)
			require.NoError(t, err)
			assert.True(t, stored.IsReleased)

			_, err = f.program.Release(ctx, charging.ReleaseRequest{
				Signer: owner,
				Escrow: escrow.Address,
				Amount: 1_000_000,
			})
			assert.ErrorIs(t, err, ledger.ErrAlreadyReleased)
		})
	}
}

// =============================================================================
// FUNDING
// =============================================================================

func TestOpenAndFund_NetAmount(t *testing.T) {
	// GIVEN: A user holding 5 credits worth 1,000 each
	// WHEN: Paying 10,000 and redeeming 3 credits
	// THEN: The escrow holds exactly 7,000 and the owner gets the credits

	ctx := context.Background()
	f := newFixture(t)
	f.mintCredits(t, user, 5)
	walletBefore := f.wallet(t, user).Balance

	res, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "s-1",
		PaymentAmount:   10_000,
		CreditsToRedeem: 3,
		CreditValue:     1_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7_000), res.Escrow.Amount)
	assert.Equal(t, charging.Split{Discount: 3_000, Net: 7_000}, res.Split)

	reserve := f.program.Rent().MinimumBalance(charging.EscrowSize)
	assert.Equal(t, walletBefore-7_000-reserve, f.wallet(t, user).Balance)
	assert.Equal(t, uint64(2), f.wallet(t, user).Credits)
	assert.Equal(t, uint64(3), f.wallet(t, owner).Credits)
}

func TestOpenAndFund_FullDiscount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mintCredits(t, user, 1)

	res, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "free",
		PaymentAmount:   1_000,
		CreditsToRedeem: 1,
		CreditValue:     1_000,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Escrow.Amount)

	backing, err := f.program.Balance(ctx, res.Escrow.Address)
	require.NoError(t, err)
	assert.Equal(t, f.program.Rent().MinimumBalance(charging.EscrowSize), backing)
}

func TestOpenAndFund_InvalidDiscount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mintCredits(t, user, 5)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "s-1",
		PaymentAmount:   1_999,
		CreditsToRedeem: 2,
		CreditValue:     1_000,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidDiscount)
	assert.Zero(t, f.account(t).ChargeCount)
	assert.Equal(t, uint64(5), f.wallet(t, user).Credits)
}

func TestOpenAndFund_DiscountOverflow(t *testing.T) {
	// GIVEN: credits_redeemed = u64 max, credit_value = 2
	// THEN: ArithmeticOverflow, never a wrapped discount

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "s-1",
		PaymentAmount:   1_000_000,
		CreditsToRedeem: math.MaxUint64,
		CreditValue:     2,
	})
	assert.ErrorIs(t, err, ledger.ErrArithmeticOverflow)
}

func TestComputeSplit(t *testing.T) {
	for i, tt := range []struct {
		payment, credits, value uint64
		want                    charging.Split
		err                     error
	}{
		{1_000, 0, 0, charging.Split{Net: 1_000}, nil},
		{1_000, 0, 999, charging.Split{Net: 1_000}, nil},
		{1_000, 1, 1_000, charging.Split{Discount: 1_000}, nil},
		{1_000, 1, 1_001, charging.Split{}, ledger.ErrInvalidDiscount},
		{0, 1, 1, charging.Split{}, ledger.ErrInvalidDiscount},
		{math.MaxUint64, math.MaxUint64, 2, charging.Split{}, ledger.ErrArithmeticOverflow},
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			got, err := charging.ComputeSplit(tt.payment, tt.credits, tt.value)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAndFund_NotEnoughCredits(t *testing.T) {
	// GIVEN: A user with 1 credit
	// WHEN: Redeeming 2
	// THEN: NotEnoughCredits and nothing changes

	ctx := context.Background()
	f := newFixture(t)
	f.mintCredits(t, user, 1)
	before := f.wallet(t, user)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "s-1",
		PaymentAmount:   10_000,
		CreditsToRedeem: 2,
		CreditValue:     1,
	})
	var creditErr *ledger.NotEnoughCreditsError
	require.ErrorAs(t, err, &creditErr)
	assert.Equal(t, uint64(1), creditErr.Available)
	assert.Equal(t, uint64(2), creditErr.Requested)

	assert.Equal(t, before, f.wallet(t, user))
	assert.Zero(t, f.account(t).ChargeCount)
	_, err = f.program.Escrow(ctx, f.program.EscrowAddress(user, f.charger.Address, "s-1"))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestOpenAndFund_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:        user,
		Charger:       f.charger.Address,
		SessionID:     "too-much",
		PaymentAmount: startingBalance,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Zero(t, f.account(t).ChargeCount)

	// the escrow record was inserted before the deposit failed
	_, err = f.program.Escrow(ctx, f.program.EscrowAddress(user, f.charger.Address, "too-much"))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestOpenAndFund_DuplicateSessionID(t *testing.T) {
	// GIVEN: A funded session
	// WHEN: The same funding is resubmitted
	// THEN: KeyAlreadyExists and the user is charged once

	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, "session-1", 5_000)
	after := f.wallet(t, user).Balance

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:        user,
		Charger:       f.charger.Address,
		SessionID:     "session-1",
		PaymentAmount: 5_000,
	})
	assert.ErrorIs(t, err, ledger.ErrKeyAlreadyExists)
	assert.Equal(t, after, f.wallet(t, user).Balance)
	assert.Equal(t, uint32(1), f.account(t).ChargeCount)
}

func TestOpenAndFund_RequiresAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.program.Airdrop(ctx, stranger, startingBalance))

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:        stranger,
		Charger:       f.charger.Address,
		SessionID:     "s-1",
		PaymentAmount: 1_000,
	})
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestOpenAndFund_UnknownCharger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:        user,
		Charger:       f.program.ChargerAddress("nowhere"),
		SessionID:     "s-1",
		PaymentAmount: 1_000,
	})
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestOpenAndFund_SessionIDValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer: user, Charger: f.charger.Address, PaymentAmount: 1,
	})
	assert.ErrorIs(t, err, ledger.ErrMissingField)

	_, err = f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:        user,
		Charger:       f.charger.Address,
		SessionID:     strings.Repeat("x", charging.MaxSessionIDLen+1),
		PaymentAmount: 1,
	})
	assert.ErrorIs(t, err, ledger.ErrFieldTooLong)
}

// =============================================================================
// REWARD ACCRUAL
// =============================================================================

func TestOpenAndFund_RewardCadence(t *testing.T) {
	// GIVEN: N=4 and currency-only fundings
	// WHEN: Funding 8 times
	// THEN: Exactly one credit on the 4th and on the 8th

	f := newFixture(t)
	var mintedAt []int
	for i := 1; i <= 8; i++ {
		res := f.fund(t, fmt.Sprintf("session-%d", i), 1_000)
		assert.Equal(t, uint32(i), res.Account.ChargeCount)
		if res.CreditsMinted > 0 {
			assert.Equal(t, uint64(1), res.CreditsMinted)
			mintedAt = append(mintedAt, i)
		}
	}

	assert.Equal(t, []int{4, 8}, mintedAt)
	assert.Equal(t, uint64(2), f.wallet(t, user).Credits)
	assert.Equal(t, uint64(2), f.account(t).RewardBalance)
}

func TestOpenAndFund_RedemptionRoundNeverMints(t *testing.T) {
	// GIVEN: Three paid fundings (the 4th would earn a credit)
	// WHEN: The 4th funding redeems a credit
	// THEN: No credit is minted in that round

	ctx := context.Background()
	f := newFixture(t)
	f.mintCredits(t, user, 1)
	for i := 1; i <= 3; i++ {
		f.fund(t, fmt.Sprintf("session-%d", i), 1_000)
	}

	res, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "session-4",
		PaymentAmount:   1_000,
		CreditsToRedeem: 1,
		CreditValue:     500,
	})
	require.NoError(t, err)
	assert.Zero(t, res.CreditsMinted)
	assert.Equal(t, uint32(4), res.Account.ChargeCount)
	assert.Zero(t, f.wallet(t, user).Credits)
	assert.Zero(t, f.account(t).RewardBalance)
}

func TestOpenAndFund_RedeemingKeepsEarnedCount(t *testing.T) {
	// GIVEN: A credit earned on the 4th funding
	// WHEN: The 5th funding redeems it
	// THEN: The credit book drops to zero, reward_balance still counts it as earned

	ctx := context.Background()
	f := newFixture(t)
	for i := 1; i <= 4; i++ {
		f.fund(t, fmt.Sprintf("session-%d", i), 1_000)
	}
	require.Equal(t, uint64(1), f.wallet(t, user).Credits)

	_, err := f.program.OpenAndFund(ctx, charging.FundRequest{
		Signer:          user,
		Charger:         f.charger.Address,
		SessionID:       "session-5",
		PaymentAmount:   1_000,
		CreditsToRedeem: 1,
		CreditValue:     500,
	})
	require.NoError(t, err)
	assert.Zero(t, f.wallet(t, user).Credits)
	assert.Equal(t, uint64(1), f.wallet(t, owner).Credits)
	assert.Equal(t, uint64(1), f.account(t).RewardBalance)
}

func TestOpenAndFund_MintFailureRollsBack(t *testing.T) {
	// GIVEN: A minter whose credential the credit ledger does not accept
	// WHEN: A funding lands on the cadence
	// THEN: The whole funding fails and leaves no trace

	ctx := context.Background()
	s := store.NewMemory()
	p := charging.NewProgram(charging.Options{
		ProgramID:           ledger.IdentityFromSeed("program"),
		Store:               s,
		Minter:              rewards.NewMinter(rewards.CadencePolicy{Every: 1}, rewards.NewMintAuthority(stranger)),
		CreditMintAuthority: mintID,
	})
	require.NoError(t, p.Airdrop(ctx, owner, startingBalance))
	require.NoError(t, p.Airdrop(ctx, user, startingBalance))
	charger, err := p.CreateCharger(ctx, owner, mainSt())
	require.NoError(t, err)
	_, err = p.InitializeAccount(ctx, user)
	require.NoError(t, err)
	before, err := p.Wallet(ctx, user)
	require.NoError(t, err)

	_, err = p.OpenAndFund(ctx, charging.FundRequest{
		Signer:        user,
		Charger:       charger.Address,
		SessionID:     "s-1",
		PaymentAmount: 1_000,
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	after, err := p.Wallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	account, err := p.Account(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, account.ChargeCount)
	_, err = p.Escrow(ctx, p.EscrowAddress(user, charger.Address, "s-1"))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestNewProgram_DefaultMinter(t *testing.T) {
	// Without an explicit minter the program mints itself every 4th funding.
	ctx := context.Background()
	s := store.NewMemory()
	p := charging.NewProgram(charging.Options{ProgramID: ledger.IdentityFromSeed("program"), Store: s})
	require.NoError(t, p.Airdrop(ctx, owner, startingBalance))
	require.NoError(t, p.Airdrop(ctx, user, startingBalance))
	charger, err := p.CreateCharger(ctx, owner, mainSt())
	require.NoError(t, err)
	_, err = p.InitializeAccount(ctx, user)
	require.NoError(t, err)

	var minted uint64
	for i := 0; i < 4; i++ {
		res, err := p.OpenAndFund(ctx, charging.FundRequest{
			Signer:        user,
			Charger:       charger.Address,
			SessionID:     fmt.Sprint(i),
			PaymentAmount: 10,
		})
		require.NoError(t, err)
		minted += res.CreditsMinted
	}
	assert.Equal(t, uint64(1), minted)
}

// =============================================================================
// RELEASE
// =============================================================================

func TestRelease_ByConsumerToOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	escrow := f.fund(t, "s-1", 5_000).Escrow
	ownerBefore := f.wallet(t, owner).Balance

	settlement, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: user,
		Escrow: escrow.Address,
		Amount: 5_000,
		Payee:  owner,
	})
	require.NoError(t, err)
	assert.Equal(t, owner, settlement.Payee)
	assert.Equal(t, ownerBefore+5_000, f.wallet(t, owner).Balance)
}

func TestRelease_ConsumerCannotPaySelf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	escrow := f.fund(t, "s-1", 5_000).Escrow

	_, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: user,
		Escrow: escrow.Address,
		Amount: 5_000,
		Payee:  user,
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	stored, err := f.program.Escrow(ctx, escrow.Address)
	require.NoError(t, err)
	assert.False(t, stored.IsReleased)
}

func TestRelease_Stranger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	escrow := f.fund(t, "s-1", 5_000).Escrow

	_, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: stranger,
		Escrow: escrow.Address,
		Amount: 5_000,
		Payee:  owner,
	})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestRelease_AmountAboveEscrow(t *testing.T) {
	// GIVEN: An escrow holding 5,000 plus its reserve
	// WHEN: Releasing 5,001
	// THEN: InsufficientFunds, the reserve can never be paid out

	ctx := context.Background()
	f := newFixture(t)
	escrow := f.fund(t, "s-1", 5_000).Escrow

	_, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: owner,
		Escrow: escrow.Address,
		Amount: 5_001,
	})
	var fundsErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, 5_000+f.program.Rent().MinimumBalance(charging.EscrowSize), fundsErr.Available)
}

func TestRelease_PartialAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	escrow := f.fund(t, "s-1", 5_000).Escrow

	settlement, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: owner,
		Escrow: escrow.Address,
		Amount: 3_000,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), settlement.Payout)
	assert.True(t, settlement.Escrow.IsReleased)

	// the unrequested 2,000 stays with the released record next to its reserve
	reserve := f.program.Rent().MinimumBalance(charging.EscrowSize)
	left, err := ledger.NewBank(f.store).Balance(ctx, escrow.Address)
	require.NoError(t, err)
	assert.Equal(t, 2_000+reserve, left)

	_, err = f.program.Release(ctx, charging.ReleaseRequest{Signer: owner, Escrow: escrow.Address, Amount: 2_000})
	assert.ErrorIs(t, err, ledger.ErrAlreadyReleased)
}

func TestRelease_NotAnEscrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.Release(ctx, charging.ReleaseRequest{
		Signer: owner,
		Escrow: f.charger.Address,
		Amount: 1,
	})
	assert.ErrorIs(t, err, ledger.ErrWrongKind)
}

// =============================================================================
// RESOURCE REGISTRY
// =============================================================================

func TestCreateCharger_DuplicateName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.CreateCharger(ctx, stranger, mainSt())
	assert.ErrorIs(t, err, ledger.ErrKeyAlreadyExists)
}

func TestCreateCharger_ReserveRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	params := mainSt()
	params.Name = "Broke-01"

	_, err := f.program.CreateCharger(ctx, stranger, params)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = f.program.Charger(ctx, f.program.ChargerAddress("Broke-01"))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
}

func TestCreateCharger_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	params := mainSt()
	params.Name = ""
	_, err := f.program.CreateCharger(ctx, owner, params)
	assert.ErrorIs(t, err, ledger.ErrMissingField)

	params = mainSt()
	params.Name = "Long-01"
	params.Description = strings.Repeat("d", charging.MaxDescriptionLen+1)
	_, err = f.program.CreateCharger(ctx, owner, params)
	var tooLong *ledger.FieldTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, "description", tooLong.Field)
}

func TestCreateCharger_Stored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.program.Charger(ctx, f.charger.Address)
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, "Main-St-01", got.Name)
	assert.Equal(t, uint64(1_000_000), got.Price)
	assert.True(t, got.Latitude.Valid)
	assert.Equal(t, "39.7817", got.Latitude.Decimal.String())

	list, err := f.program.Chargers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.charger.Address, list[0].Address)
}

func TestUpdateCharger_Owner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	params := mainSt()
	params.Price = 2_000_000
	params.Latitude = decimal.NullDecimal{}

	updated, err := f.program.UpdateCharger(ctx, owner, f.charger.Address, params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), updated.Price)
	assert.False(t, updated.Latitude.Valid)
	assert.Equal(t, owner, updated.Owner)
}

func TestUpdateCharger_Unauthorized(t *testing.T) {
	// GIVEN: A charger owned by owner
	// WHEN: Someone else updates it
	// THEN: Unauthorized, record unchanged

	ctx := context.Background()
	f := newFixture(t)
	params := mainSt()
	params.Price = 1

	_, err := f.program.UpdateCharger(ctx, stranger, f.charger.Address, params)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	// invalid params from a non-owner are still Unauthorized
	tooLong := mainSt()
	tooLong.Description = strings.Repeat("d", charging.MaxDescriptionLen+1)
	_, err = f.program.UpdateCharger(ctx, stranger, f.charger.Address, tooLong)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	noName := mainSt()
	noName.Name = ""
	_, err = f.program.UpdateCharger(ctx, stranger, f.charger.Address, noName)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	renamed := mainSt()
	renamed.Name = "Elm-St-02"
	_, err = f.program.UpdateCharger(ctx, stranger, f.charger.Address, renamed)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	got, err := f.program.Charger(ctx, f.charger.Address)
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, f.charger.Price, got.Price)
	assert.Equal(t, f.charger.Description, got.Description)
	assert.True(t, f.charger.Latitude.Decimal.Equal(got.Latitude.Decimal))
}

func TestUpdateCharger_OwnerValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	params := mainSt()
	params.City = strings.Repeat("c", charging.MaxCityLen+1)

	_, err := f.program.UpdateCharger(ctx, owner, f.charger.Address, params)
	assert.ErrorIs(t, err, ledger.ErrFieldTooLong)
}

func TestUpdateCharger_NameImmutable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	params := mainSt()
	params.Name = "Elm-St-02"

	_, err := f.program.UpdateCharger(ctx, owner, f.charger.Address, params)
	assert.ErrorIs(t, err, ledger.ErrImmutableName)
}

// =============================================================================
// ACCOUNT LEDGER
// =============================================================================

func TestInitializeAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	account := f.account(t)
	assert.Equal(t, user, account.Authority)
	assert.Zero(t, account.ChargeCount)
	assert.Zero(t, account.TotalSessions)

	_, err := f.program.InitializeAccount(ctx, user)
	assert.ErrorIs(t, err, ledger.ErrKeyAlreadyExists)
}

// =============================================================================
// SESSION LEDGER
// =============================================================================

func TestRecordSession_Aggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i, ts := range []int64{1_700_000_200, 1_700_000_100} {
		_, err := f.program.RecordSession(ctx, charging.RecordSessionRequest{
			Signer:      user,
			Charger:     f.charger.Address,
			ChargerName: "Main-St-01",
			Power:       uint64(10 * (i + 1)),
			PricePaid:   1_000,
			Minutes:     30,
			Timestamp:   ts,
		})
		require.NoError(t, err)
	}

	account := f.account(t)
	assert.Equal(t, uint64(2), account.TotalSessions)
	assert.Equal(t, uint64(30), account.TotalPowerConsumed)
	assert.Equal(t, uint64(2_000), account.TotalPricePaid)

	sessions, err := f.program.Sessions(ctx, user)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(1_700_000_100), sessions[0].Timestamp)
	assert.Equal(t, int64(1_700_000_200), sessions[1].Timestamp)

	none, err := f.program.Sessions(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordSession_DuplicateTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := charging.RecordSessionRequest{
		Signer:    user,
		Charger:   f.charger.Address,
		Power:     10,
		PricePaid: 100,
		Timestamp: 1_700_000_000,
	}

	_, err := f.program.RecordSession(ctx, req)
	require.NoError(t, err)
	_, err = f.program.RecordSession(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrKeyAlreadyExists)
	assert.Equal(t, uint64(1), f.account(t).TotalSessions)
}

func TestRecordSession_AggregateOverflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.program.RecordSession(ctx, charging.RecordSessionRequest{
		Signer: user, Charger: f.charger.Address, Power: math.MaxUint64, Timestamp: 1,
	})
	require.NoError(t, err)

	_, err = f.program.RecordSession(ctx, charging.RecordSessionRequest{
		Signer: user, Charger: f.charger.Address, Power: 1, Timestamp: 2,
	})
	assert.ErrorIs(t, err, ledger.ErrArithmeticOverflow)

	_, err = f.program.Session(ctx, f.program.SessionAddress(user, 2))
	assert.ErrorIs(t, err, ledger.ErrRecordNotFound, "session record rolled back")
}
