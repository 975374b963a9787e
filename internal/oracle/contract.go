// Package oracle implements the weather request contract: a ledger of pending
// requests funded from an escrow balance, fulfilled by a single callback
// authority, and configured by a single owner.
//
// Every operation runs under one lock, which stands in for the host ledger's
// guarantee that transactions apply one at a time. An operation either applies
// all of its effects or returns an error and changes nothing. With a
// StateStore attached, the effects are committed to it before they become
// visible, so a restarted contract continues where it stopped.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/eventlog"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
)

// Contract is the request/fulfillment state machine.
type Contract struct {
	mu sync.Mutex

	address common.Address
	owner   common.Address
	config  Configuration
	escrow  *escrow
	ledger  *ledger
	nonce   uint64
	events  *eventlog.Log
	state   StateStore

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option customizes a Contract.
type Option func(*Contract)

// WithClock sets the time source for request timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(ct *Contract) { ct.clock = c }
}

// WithLogger sets the contract logger.
func WithLogger(l *slog.Logger) Option {
	return func(ct *Contract) { ct.logger = l }
}

// WithMetrics sets the Prometheus instrumentation. Without it the contract
// records into an unregistered set.
func WithMetrics(m *observability.Metrics) Option {
	return func(ct *Contract) { ct.metrics = m }
}

// WithEscrow sets the opening escrow balance.
func WithEscrow(initial *big.Int) Option {
	return func(ct *Contract) { ct.escrow = newEscrow(initial) }
}

// New deploys an in-memory contract at address owned by owner. Its state is
// lost when the process exits; use Open for a durable contract.
func New(address, owner common.Address, cfg Configuration, opts ...Option) (*Contract, error) {
	if cfg.Fee != nil && cfg.Fee.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative fee", domain.ErrInvalidInput)
	}
	c := &Contract{
		address: address,
		owner:   owner,
		config:  cfg.clone(),
		escrow:  newEscrow(nil),
		ledger:  newLedger(),
		events:  eventlog.New(),
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observability.NewUnregisteredMetrics()
	}
	if c.escrow.balance.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative opening escrow", domain.ErrInvalidInput)
	}
	c.observeBalances()
	return c, nil
}

// Open attaches a contract at address to s. If s already holds state for
// address, that state is restored and owner, cfg and the opening escrow are
// ignored. Otherwise they become the initial state, which is stored before
// Open returns.
func Open(ctx context.Context, s StateStore, address, owner common.Address, cfg Configuration, opts ...Option) (*Contract, error) {
	c, err := New(address, owner, cfg, opts...)
	if err != nil {
		return nil, err
	}

	st, found, err := s.Load(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load contract state: %w", err)
	}
	if !found {
		if err := s.Commit(ctx, address, c.change()); err != nil {
			return nil, fmt.Errorf("store initial contract state: %w", err)
		}
		c.state = s
		c.logger.Info("contract state initialized", "address", address.Hex(), "owner", owner.Hex())
		return c, nil
	}

	if err := c.restore(st); err != nil {
		return nil, err
	}
	c.state = s
	c.observeBalances()
	c.logger.Info("contract state restored",
		"address", address.Hex(),
		"owner", c.owner.Hex(),
		"nonce", c.nonce,
		"pending", c.ledger.len(),
		"events", c.events.Len(),
	)
	return c, nil
}

func (c *Contract) restore(st State) error {
	events, err := eventlog.Restore(st.Events)
	if err != nil {
		return err
	}
	if st.Escrow == nil || st.Escrow.Sign() < 0 {
		return errors.New("restore contract state: invalid escrow balance")
	}
	ledger := newLedger()
	for _, r := range st.Pending {
		if r.Nonce == 0 || r.Nonce > st.Nonce {
			return fmt.Errorf("restore contract state: pending request %s has nonce %d beyond %d", r.ID.Hex(), r.Nonce, st.Nonce)
		}
		ledger.insert(copyRequest(r))
	}

	c.owner = st.Owner
	c.config = st.Config.clone()
	c.nonce = st.Nonce
	c.escrow = newEscrow(st.Escrow)
	c.ledger = ledger
	c.events = events
	return nil
}

// Request funds a weather request for city from escrow and records it as
// pending. It emits WeatherRequested.
func (c *Contract) Request(ctx context.Context, caller common.Address, city string) (domain.Request, error) {
	if err := validateCity(city); err != nil {
		return domain.Request{}, c.reject("request", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fee := c.config.Fee
	if !c.escrow.covers(fee) {
		return domain.Request{}, c.reject("request", fmt.Errorf("%w: escrow %s below fee %s",
			domain.ErrInsufficientFunds, domain.FormatTokenAmount(c.escrow.balance), domain.FormatTokenAmount(fee)))
	}

	nonce := c.nonce + 1
	req := domain.Request{
		ID:        domain.RequestID(c.address, nonce),
		Nonce:     nonce,
		City:      city,
		Requester: caller,
		CreatedAt: c.clock.Now().Unix(),
		TaskID:    c.config.TaskID,
		Fee:       cloneAmount(fee),
	}
	event := domain.WeatherRequested{
		RequestID: req.ID,
		City:      req.City,
		Requester: req.Requester,
		Timestamp: req.CreatedAt,
	}

	ch := c.change()
	ch.Nonce = nonce
	ch.Escrow.Sub(ch.Escrow, fee)
	ch.Insert = &req
	ch.Event = &eventlog.Entry{Seq: c.events.Len() + 1, Event: event}
	if err := c.commit(ctx, ch); err != nil {
		return domain.Request{}, c.reject("request", err)
	}

	c.escrow.debit(fee)
	c.nonce = nonce
	c.ledger.insert(req)
	seq := c.events.Append(event)

	c.metrics.Requests.Inc()
	c.observeBalances()
	c.logger.Info("weather requested",
		"request_id", req.ID.Hex(),
		"city", city,
		"requester", caller.Hex(),
		"log_seq", seq,
	)
	return copyRequest(req), nil
}

// Fulfill records the oracle's answer for a pending request and emits
// WeatherReported. Only the callback authority may call it.
func (c *Contract) Fulfill(ctx context.Context, caller common.Address, requestID common.Hash, city string, temperature domain.Temperature, description string, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.config.CallbackAuthority {
		return c.reject("fulfill", fmt.Errorf("%w: %s is not the callback authority", domain.ErrUnauthorized, caller.Hex()))
	}
	req, ok := c.ledger.get(requestID)
	if !ok {
		return c.reject("fulfill", fmt.Errorf("%w: %s is not pending", domain.ErrUnknownRequest, requestID.Hex()))
	}

	event := domain.WeatherReported{
		RequestID:   requestID,
		City:        city,
		Temperature: temperature,
		Description: description,
		Timestamp:   timestamp,
		Requester:   req.Requester,
	}
	ch := c.change()
	ch.Remove = &requestID
	ch.Event = &eventlog.Entry{Seq: c.events.Len() + 1, Event: event}
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("fulfill", err)
	}

	c.ledger.remove(requestID)
	seq := c.events.Append(event)

	c.metrics.Fulfillments.Inc()
	c.observeBalances()
	c.logger.Info("weather reported",
		"request_id", requestID.Hex(),
		"city", city,
		"temperature", temperature.String(),
		"log_seq", seq,
	)
	return nil
}

// Deposit credits escrow. Anyone may fund the contract.
func (c *Contract) Deposit(ctx context.Context, caller common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return c.reject("deposit", fmt.Errorf("%w: deposit must be positive", domain.ErrInvalidInput))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.change()
	ch.Escrow.Add(ch.Escrow, amount)
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("deposit", err)
	}

	c.escrow.credit(amount)
	c.observeBalances()
	c.logger.Info("escrow deposit", "from", caller.Hex(), "amount", domain.FormatTokenAmount(amount))
	return nil
}

// Withdraw moves amount out of escrow to the owner and returns it.
func (c *Contract) Withdraw(ctx context.Context, caller common.Address, amount *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.onlyOwner(caller); err != nil {
		return nil, c.reject("withdraw", err)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, c.reject("withdraw", fmt.Errorf("%w: withdrawal must be positive", domain.ErrInvalidInput))
	}
	if !c.escrow.covers(amount) {
		return nil, c.reject("withdraw", fmt.Errorf("%w: escrow %s below withdrawal %s",
			domain.ErrInsufficientFunds, domain.FormatTokenAmount(c.escrow.balance), domain.FormatTokenAmount(amount)))
	}

	ch := c.change()
	ch.Escrow.Sub(ch.Escrow, amount)
	if err := c.commit(ctx, ch); err != nil {
		return nil, c.reject("withdraw", err)
	}

	c.escrow.debit(amount)
	c.observeBalances()
	c.logger.Info("escrow withdrawal", "to", c.owner.Hex(), "amount", domain.FormatTokenAmount(amount))
	return cloneAmount(amount), nil
}

// SetCallbackAuthority replaces the identity allowed to fulfill requests.
func (c *Contract) SetCallbackAuthority(ctx context.Context, caller, authority common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.onlyOwner(caller); err != nil {
		return c.reject("set_callback_authority", err)
	}
	ch := c.change()
	ch.Config.CallbackAuthority = authority
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("set_callback_authority", err)
	}
	c.config.CallbackAuthority = authority
	c.logger.Info("callback authority updated", "authority", authority.Hex())
	return nil
}

// SetTaskID replaces the oracle job identifier attached to new requests.
func (c *Contract) SetTaskID(ctx context.Context, caller common.Address, taskID common.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.onlyOwner(caller); err != nil {
		return c.reject("set_task_id", err)
	}
	ch := c.change()
	ch.Config.TaskID = taskID
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("set_task_id", err)
	}
	c.config.TaskID = taskID
	c.logger.Info("task id updated", "task_id", taskID.Hex())
	return nil
}

// SetFee replaces the fee debited per request.
func (c *Contract) SetFee(ctx context.Context, caller common.Address, fee *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.onlyOwner(caller); err != nil {
		return c.reject("set_fee", err)
	}
	if fee == nil || fee.Sign() < 0 {
		return c.reject("set_fee", fmt.Errorf("%w: fee must not be negative", domain.ErrInvalidInput))
	}
	ch := c.change()
	ch.Config.Fee = cloneAmount(fee)
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("set_fee", err)
	}
	c.config.Fee = cloneAmount(fee)
	c.logger.Info("fee updated", "fee", domain.FormatTokenAmount(fee))
	return nil
}

// TransferOwnership hands the contract to a new owner.
func (c *Contract) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.onlyOwner(caller); err != nil {
		return c.reject("transfer_ownership", err)
	}
	if newOwner == (common.Address{}) {
		return c.reject("transfer_ownership", fmt.Errorf("%w: new owner is the zero address", domain.ErrInvalidInput))
	}
	ch := c.change()
	ch.Owner = newOwner
	if err := c.commit(ctx, ch); err != nil {
		return c.reject("transfer_ownership", err)
	}
	previous := c.owner
	c.owner = newOwner
	c.logger.Info("ownership transferred", "from", previous.Hex(), "to", newOwner.Hex())
	return nil
}

// Address returns the contract address used to derive request IDs.
func (c *Contract) Address() common.Address {
	return c.address
}

// Owner returns the current owner.
func (c *Contract) Owner() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Config returns a copy of the current configuration.
func (c *Contract) Config() Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.clone()
}

// Balance returns the escrow balance in base units.
func (c *Contract) Balance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escrow.snapshot()
}

// Pending looks up a pending request.
func (c *Contract) Pending(id common.Hash) (domain.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.ledger.get(id)
	if !ok {
		return domain.Request{}, false
	}
	return copyRequest(r), true
}

// PendingRequests lists pending requests, oldest first.
func (c *Contract) PendingRequests() []domain.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.ledger.list()
	for i := range out {
		out[i] = copyRequest(out[i])
	}
	return out
}

// Events returns the contract's event log.
func (c *Contract) Events() *eventlog.Log {
	return c.events
}

// change starts a Change from the current state; callers hold c.mu.
func (c *Contract) change() Change {
	return Change{
		Owner:  c.owner,
		Config: c.config.clone(),
		Nonce:  c.nonce,
		Escrow: c.escrow.snapshot(),
	}
}

// commit makes ch durable before the caller applies it in memory.
func (c *Contract) commit(ctx context.Context, ch Change) error {
	if c.state == nil {
		return nil
	}
	if err := c.state.Commit(ctx, c.address, ch); err != nil {
		return fmt.Errorf("commit contract state: %w", err)
	}
	return nil
}

func (c *Contract) onlyOwner(caller common.Address) error {
	if caller != c.owner {
		return fmt.Errorf("%w: %s is not the owner", domain.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// reject records a failed operation and returns err unchanged.
func (c *Contract) reject(op string, err error) error {
	c.metrics.Rejections.WithLabelValues(op, reason(err)).Inc()
	c.logger.Warn("operation rejected", "operation", op, "error", err)
	return err
}

// observeBalances publishes gauges; callers hold c.mu.
func (c *Contract) observeBalances() {
	tokens, _ := new(big.Float).Quo(
		new(big.Float).SetInt(c.escrow.balance),
		new(big.Float).SetInt(oneToken),
	).Float64()
	c.metrics.EscrowBalance.Set(tokens)
	c.metrics.PendingRequests.Set(float64(c.ledger.len()))
}

var oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.TokenDecimals), nil)

func validateCity(city string) error {
	if strings.TrimSpace(city) == "" {
		return fmt.Errorf("%w: city must not be empty", domain.ErrInvalidInput)
	}
	if len(city) > domain.MaxCityLength {
		return fmt.Errorf("%w: city longer than %d bytes", domain.ErrInvalidInput, domain.MaxCityLength)
	}
	return nil
}

func copyRequest(r domain.Request) domain.Request {
	r.Fee = cloneAmount(r.Fee)
	return r
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrUnknownRequest):
		return "unknown_request"
	default:
		return "other"
	}
}
