package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/solana"
)

// Default wait bounds.
const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Config describes one cluster session.
type Config struct {
	RPCURL            string
	Commitment        string
	ProgramID         solanago.PublicKey
	MetadataProgramID solanago.PublicKey // defaults to the Metaplex program
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	RateLimit         float64 // requests per second, 0 = unlimited
	MaxRetries        int
}

// Context is an explicitly opened cluster session. Components receive it
// by reference instead of reaching for a process-wide provider.
type Context struct {
	Client            Client
	ProgramID         solanago.PublicKey
	MetadataProgramID solanago.PublicKey
	ConfirmTimeout    time.Duration
	PollInterval      time.Duration

	logger  *zap.Logger
	mu      sync.Mutex
	closed  bool
	onClose []func() error
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		c.logger = l
	}
}

// WithConfirmTimeout bounds confirmation waits.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Context) {
		c.ConfirmTimeout = d
	}
}

// WithPollInterval sets the confirmation poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Context) {
		c.PollInterval = d
	}
}

// WithMetadataProgram overrides the metadata program id.
func WithMetadataProgram(id solanago.PublicKey) Option {
	return func(c *Context) {
		c.MetadataProgramID = id
	}
}

// OnClose registers fn to run when the context closes.
func OnClose(fn func() error) Option {
	return func(c *Context) {
		c.onClose = append(c.onClose, fn)
	}
}

// NewContext binds an existing client. Tests use it with the simulator.
func NewContext(client Client, programID solanago.PublicKey, opts ...Option) *Context {
	c := &Context{
		Client:            client,
		ProgramID:         programID,
		MetadataProgramID: solanago.TokenMetadataProgramID,
		ConfirmTimeout:    DefaultConfirmTimeout,
		PollInterval:      DefaultPollInterval,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialRPC builds the JSON-RPC transport described by cfg.
func DialRPC(cfg Config) *solana.HTTPClient {
	clientOpts := []solana.ClientOption{solana.WithRateLimit(cfg.RateLimit, 1)}
	if cfg.Commitment != "" {
		clientOpts = append(clientOpts, solana.WithCommitment(cfg.Commitment))
	}
	if cfg.RequestTimeout > 0 {
		clientOpts = append(clientOpts, solana.WithTimeout(cfg.RequestTimeout))
	}
	if cfg.MaxRetries > 0 {
		clientOpts = append(clientOpts, solana.WithMaxRetries(cfg.MaxRetries))
	}
	return solana.NewHTTPClient(cfg.RPCURL, clientOpts...)
}

// Open binds rpc (usually from DialRPC) and verifies the endpoint answers.
func Open(ctx context.Context, rpc solana.RPCClient, cfg Config, opts ...Option) (*Context, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("open ledger: rpc url is required")
	}
	if cfg.ProgramID.IsZero() {
		return nil, fmt.Errorf("open ledger: program id is required")
	}

	lc := NewContext(NewRPCClient(rpc), cfg.ProgramID, opts...)
	if !cfg.MetadataProgramID.IsZero() {
		lc.MetadataProgramID = cfg.MetadataProgramID
	}
	if cfg.ConfirmTimeout > 0 {
		lc.ConfirmTimeout = cfg.ConfirmTimeout
	}
	if cfg.PollInterval > 0 {
		lc.PollInterval = cfg.PollInterval
	}

	if _, err := lc.Client.LatestBlockhash(ctx); err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.RPCURL, err)
	}

	lc.logger.Info("ledger context opened",
		zap.String("rpc", cfg.RPCURL),
		zap.String("program", cfg.ProgramID.String()),
		zap.Duration("confirm_timeout", lc.ConfirmTimeout))
	return lc, nil
}

// Logger returns the context logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// Close runs registered close hooks once. Further use returns ErrClosed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for _, fn := range c.onClose {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Err returns ErrClosed after Close.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// AwaitConfirmation polls sig until it is confirmed, fails, or the wait
// bound elapses. On timeout it returns StatusUnknown and
// ErrConfirmationTimeout; cancelling ctx returns StatusUnknown and ctx.Err().
func (c *Context) AwaitConfirmation(ctx context.Context, sig solanago.Signature) (Status, error) {
	status, err := c.awaitConfirmation(ctx, sig)
	observability.RecordConfirmation(status.String())
	return status, err
}

func (c *Context) awaitConfirmation(ctx context.Context, sig solanago.Signature) (Status, error) {
	if err := c.Err(); err != nil {
		return StatusUnknown, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.Client.Confirm(waitCtx, sig)
		switch {
		case status == StatusConfirmed:
			return StatusConfirmed, nil
		case status == StatusFailed:
			return StatusFailed, err
		case err != nil && waitCtx.Err() == nil:
			// Transient lookup failure; keep polling within the bound.
			c.logger.Debug("confirmation poll failed", zap.String("signature", sig.String()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return StatusUnknown, ctx.Err()
			}
			c.logger.Warn("confirmation timed out",
				zap.String("signature", sig.String()),
				zap.Duration("waited", c.ConfirmTimeout))
			return StatusUnknown, ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}
