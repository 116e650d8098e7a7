package gateway

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type stubClient struct {
	token    string
	tokenErr error

	tx        *Transaction
	saleErr   error
	saleCalls int

	// saleHook blocks or observes a sale mid-flight.
	saleHook func()
}

func (s *stubClient) ClientToken(context.Context) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

func (s *stubClient) Sale(_ context.Context, _ decimal.Decimal, _ string) (*Transaction, error) {
	s.saleCalls++
	if s.saleHook != nil {
		s.saleHook()
	}
	if s.saleErr != nil {
		return nil, s.saleErr
	}
	return s.tx, nil
}

// --- Tests ---

func TestCheckout_HappyPath(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{
		token: "tok-1",
		tx:    &Transaction{ID: "tx-1", Status: "submitted_for_settlement"},
	}
	co := NewCheckout(client, nil, nil)

	assert.Equal(t, StateUninitialized, co.State())

	token, err := co.RequestToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, StateTokenReady, co.State())

	require.NoError(t, co.CollectNonce("nonce-1"))
	assert.Equal(t, StateNonceCollected, co.State())

	tx, err := co.Settle(ctx, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, StateSettled, co.State())
	assert.Equal(t, tx, co.Result())
}

func TestCheckout_TokenFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{tokenErr: errors.New("gateway down")}
	co := NewCheckout(client, nil, nil)

	_, err := co.RequestToken(ctx)
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, co.State())

	// Without a token the form never rendered, so no nonce is acceptable.
	assert.ErrorIs(t, co.CollectNonce("nonce-1"), ErrTokenNotReady)

	// The buyer retries by reloading; a later token request succeeds.
	client.tokenErr = nil
	client.token = "tok-2"
	token, err := co.RequestToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, StateTokenReady, co.State())
}

func TestCheckout_TokenIdempotentOnceReady(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{token: "tok-1"}
	co := NewCheckout(client, nil, nil)

	first, err := co.RequestToken(ctx)
	require.NoError(t, err)

	// A second request returns the same token without another gateway call.
	again, err := co.RequestToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestCheckout_SettleRequiresNonce(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{tx: &Transaction{ID: "tx-1"}}
	co := NewCheckout(client, nil, nil)
	co.ResumeHostedForm()

	_, err := co.Settle(ctx, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrNoNonce)
	assert.Zero(t, client.saleCalls)

	assert.ErrorIs(t, co.CollectNonce(""), ErrNoNonce)
}

func TestCheckout_SettlementInFlightRejectsSecondSubmit(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{tx: &Transaction{ID: "tx-1"}}
	co := NewCheckout(client, nil, nil)
	co.ResumeHostedForm()
	require.NoError(t, co.CollectNonce("nonce-1"))

	// While the first settlement is on the wire, a concurrent submit must
	// be refused rather than double-charged.
	client.saleHook = func() {
		_, err := co.Settle(ctx, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrSettlementInFlight)
		assert.ErrorIs(t, co.CollectNonce("nonce-2"), ErrSettlementInFlight)
	}

	_, err := co.Settle(ctx, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 1, client.saleCalls)
}

func TestCheckout_SettledIsTerminal(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{tx: &Transaction{ID: "tx-1"}}
	co := NewCheckout(client, nil, nil)
	co.ResumeHostedForm()
	require.NoError(t, co.CollectNonce("nonce-1"))
	_, err := co.Settle(ctx, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.ErrorIs(t, co.CollectNonce("nonce-2"), ErrCheckoutDone)
	_, err = co.Settle(ctx, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrCheckoutDone)
}

func TestCheckout_DeclineAllowsRetryWithFreshNonce(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{saleErr: &DeclineError{Message: "Credit card declined"}}
	co := NewCheckout(client, nil, nil)
	co.ResumeHostedForm()
	require.NoError(t, co.CollectNonce("nonce-1"))

	_, err := co.Settle(ctx, decimal.NewFromInt(100))
	var decline *DeclineError
	require.ErrorAs(t, err, &decline)
	assert.Equal(t, StateDeclined, co.State())

	// The spent nonce is consumed; retry needs a fresh one, by explicit
	// user action.
	_, err = co.Settle(ctx, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ErrNoNonce)

	client.saleErr = nil
	client.tx = &Transaction{ID: "tx-2"}
	require.NoError(t, co.CollectNonce("nonce-2"))
	tx, err := co.Settle(ctx, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "tx-2", tx.ID)
}

func TestCheckout_ResumeHostedForm(t *testing.T) {
	client := &stubClient{tx: &Transaction{ID: "tx-1"}}
	co := NewCheckout(client, nil, nil)

	co.ResumeHostedForm()
	assert.Equal(t, StateTokenReady, co.State())

	// Resume is a no-op once past the token phase.
	require.NoError(t, co.CollectNonce("nonce-1"))
	co.ResumeHostedForm()
	assert.Equal(t, StateNonceCollected, co.State())
}

func TestCheckout_NonceReplayRejected(t *testing.T) {
	guard := NewNonceGuard(1000, 0.001)
	client := &stubClient{tx: &Transaction{ID: "tx-1"}}

	first := NewCheckout(client, guard, nil)
	first.ResumeHostedForm()
	require.NoError(t, first.CollectNonce("nonce-1"))

	// The same nonce replayed through another checkout is refused before
	// any gateway traffic.
	second := NewCheckout(client, guard, nil)
	second.ResumeHostedForm()
	assert.ErrorIs(t, second.CollectNonce("nonce-1"), ErrNonceAlreadySpent)
	assert.Zero(t, client.saleCalls)

	assert.NoError(t, second.CollectNonce("nonce-2"))
}

func TestNonceGuard_Spend(t *testing.T) {
	guard := NewNonceGuard(1000, 0.001)

	assert.True(t, guard.Spend("a"))
	assert.False(t, guard.Spend("a"))
	assert.True(t, guard.Spend("b"))
	assert.False(t, guard.Spend("b"))
	assert.False(t, guard.Spend("a"))
}
