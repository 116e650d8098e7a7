package gateway

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the position of a single checkout in the gateway protocol.
type State uint8

const (
	StateUninitialized State = iota
	StateTokenRequested
	StateTokenReady
	StateNonceCollected
	StateSettlementRequested
	StateSettled
	StateDeclined
)

var stateNames = map[State]string{
	StateUninitialized:       "uninitialized",
	StateTokenRequested:      "token_requested",
	StateTokenReady:          "token_ready",
	StateNonceCollected:      "nonce_collected",
	StateSettlementRequested: "settlement_requested",
	StateSettled:             "settled",
	StateDeclined:            "declined",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Transition errors.
var (
	ErrTokenNotReady       = errors.New("client token not ready")
	ErrNoNonce             = errors.New("no payment nonce collected")
	ErrSettlementInFlight  = errors.New("settlement already in flight")
	ErrCheckoutDone        = errors.New("checkout already settled")
	ErrNonceAlreadySpent   = errors.New("payment nonce already used")
	ErrTokenAlreadyFetched = errors.New("client token already requested")
)

// Checkout drives one cart through the gateway protocol:
//
//	Uninitialized -> TokenRequested -> TokenReady -> NonceCollected
//	    -> SettlementRequested -> Settled | Declined
//
// A failed token request falls back to Uninitialized. Only one settlement
// may be in flight at a time; a second Settle while one is pending returns
// ErrSettlementInFlight, which is how the submit affordance stays disabled
// server-side. After a decline a fresh nonce may be collected and settlement
// retried by explicit user action.
type Checkout struct {
	client Client
	nonces *NonceGuard
	lg     *zap.Logger

	mu          sync.Mutex
	state       State
	clientToken string
	nonce       string
	result      *Transaction
}

// NewCheckout creates a checkout in the Uninitialized state.
func NewCheckout(client Client, nonces *NonceGuard, lg *zap.Logger) *Checkout {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Checkout{
		client: client,
		nonces: nonces,
		lg:     lg,
	}
}

// State returns the current protocol state.
func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the settlement transaction after a successful Settle.
func (c *Checkout) Result() *Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// RequestToken fetches the client-side authorization token. On failure the
// checkout returns to Uninitialized and the payment form must not be
// rendered; the caller surfaces the error and the buyer retries by reloading.
func (c *Checkout) RequestToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch c.state {
	case StateUninitialized:
	case StateTokenRequested:
		c.mu.Unlock()
		return "", ErrTokenAlreadyFetched
	default:
		token := c.clientToken
		c.mu.Unlock()
		return token, nil
	}
	c.state = StateTokenRequested
	c.mu.Unlock()

	token, err := c.client.ClientToken(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateUninitialized
		c.lg.Warn("client token request failed", zap.Error(err))
		return "", errors.Wrap(err, "request client token")
	}

	c.clientToken = token
	c.state = StateTokenReady
	return token, nil
}

// ResumeHostedForm moves an Uninitialized checkout straight to TokenReady.
// The settlement endpoint uses it: the arriving nonce is the evidence that
// the client already completed the token phase and rendered the hosted form,
// so this server-side checkout resumes mid-protocol.
func (c *Checkout) ResumeHostedForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized {
		c.state = StateTokenReady
	}
}

// CollectNonce records the single-use payment-method nonce produced by the
// hosted payment form. The replay guard rejects a nonce that has already
// been spent anywhere in this process before a gateway call is wasted on it.
func (c *Checkout) CollectNonce(nonce string) error {
	if nonce == "" {
		return ErrNoNonce
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateTokenReady, StateDeclined:
	case StateSettlementRequested:
		return ErrSettlementInFlight
	case StateSettled:
		return ErrCheckoutDone
	default:
		return ErrTokenNotReady
	}

	if c.nonces != nil && !c.nonces.Spend(nonce) {
		return ErrNonceAlreadySpent
	}

	c.nonce = nonce
	c.state = StateNonceCollected
	return nil
}

// Settle exchanges the collected nonce for a settlement at the given amount.
// The amount is the cart total at the moment of submission, never a value
// captured earlier. The collected nonce is consumed whatever the outcome.
func (c *Checkout) Settle(ctx context.Context, amount decimal.Decimal) (*Transaction, error) {
	c.mu.Lock()
	switch c.state {
	case StateNonceCollected:
	case StateSettlementRequested:
		c.mu.Unlock()
		return nil, ErrSettlementInFlight
	case StateSettled:
		c.mu.Unlock()
		return nil, ErrCheckoutDone
	default:
		c.mu.Unlock()
		return nil, ErrNoNonce
	}
	nonce := c.nonce
	c.nonce = ""
	c.state = StateSettlementRequested
	c.mu.Unlock()

	tx, err := c.client.Sale(ctx, amount, nonce)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateDeclined
		return nil, err
	}

	c.result = tx
	c.state = StateSettled
	return tx, nil
}
