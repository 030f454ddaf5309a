package membership

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vonvault/internal/types"
)

// InvestmentWriter appends an investment record.
type InvestmentWriter interface {
	CreateInvestment(ctx context.Context, inv *types.Investment) error
}

// MembershipWriter rewrites a user's cached membership level.
type MembershipWriter interface {
	SetMembershipLevel(ctx context.Context, userID string, level types.MembershipLevel) error
}

// Locker serializes the read-validate-write sequence per user. release must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventType identifies a domain event.
type EventType string

const (
	EventInvestmentCreated  EventType = "investment.created"
	EventMembershipUpgraded EventType = "membership.upgraded"
)

// Event is emitted after an investment has been committed.
type Event struct {
	Type       EventType             `json:"type"`
	UserID     string                `json:"user_id"`
	Investment types.Investment      `json:"investment"`
	FromLevel  types.MembershipLevel `json:"from_level"`
	ToLevel    types.MembershipLevel `json:"to_level"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Publisher delivers domain events. Delivery is best effort; failures never
// undo a committed investment.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Metrics records investment outcomes.
type Metrics interface {
	RecordInvestment(outcome, level string)
	RecordUpgrade(from, to string)
}

// RetryPolicy bounds the retries of the cache update that follows a
// Basic to Club upgrade.
type RetryPolicy struct {
	MaxAttempts int
	Wait        time.Duration
}

// DefaultRetryPolicy returns the production retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Wait: 100 * time.Millisecond}
}

// Result is a committed investment and the caller-facing message.
type Result struct {
	Investment types.Investment
	Message    string
	Path       Path
}

// Committer runs the investment protocol: resolve, decide, insert, and for the
// Basic to Club transition only, update the cached level.
type Committer struct {
	catalog     *Catalog
	resolver    *Resolver
	investments InvestmentWriter
	users       MembershipWriter
	locker      Locker
	publisher   Publisher
	metrics     Metrics
	logger      *slog.Logger
	retry       RetryPolicy

	now     func() time.Time
	newID   func() string
	sleepFn func(time.Duration)
}

// CommitterOption is a functional option for configuring a Committer.
type CommitterOption func(*Committer)

// WithLocker replaces the in-process per-user lock.
func WithLocker(l Locker) CommitterOption {
	return func(c *Committer) { c.locker = l }
}

// WithPublisher attaches a domain event publisher.
func WithPublisher(p Publisher) CommitterOption {
	return func(c *Committer) { c.publisher = p }
}

// WithMetrics attaches an outcome recorder.
func WithMetrics(m Metrics) CommitterOption {
	return func(c *Committer) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CommitterOption {
	return func(c *Committer) { c.logger = l }
}

// WithRetryPolicy overrides the cache update retry policy.
func WithRetryPolicy(p RetryPolicy) CommitterOption {
	return func(c *Committer) { c.retry = p }
}

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) CommitterOption {
	return func(c *Committer) { c.now = now }
}

// WithIDGenerator overrides investment id generation. Intended for tests.
func WithIDGenerator(fn func() string) CommitterOption {
	return func(c *Committer) { c.newID = fn }
}

// WithSleepFunc overrides the sleep between cache update retries.
func WithSleepFunc(fn func(time.Duration)) CommitterOption {
	return func(c *Committer) { c.sleepFn = fn }
}

// NewCommitter creates a Committer. Without WithLocker, submissions are
// serialized per user within this process only.
func NewCommitter(
	catalog *Catalog,
	resolver *Resolver,
	investments InvestmentWriter,
	users MembershipWriter,
	opts ...CommitterOption,
) *Committer {
	c := &Committer{
		catalog:     catalog,
		resolver:    resolver,
		investments: investments,
		users:       users,
		locker:      NewLocalLocker(),
		logger:      slog.Default(),
		retry:       DefaultRetryPolicy(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates and commits one investment for req.UserID. Validation
// failures are returned before any write. When the cached level update after
// an upgrade cannot be completed, the investment still stands and Submit
// succeeds; the stale cache is logged.
func (c *Committer) Submit(ctx context.Context, req types.InvestmentRequest) (*Result, error) {
	release, err := c.locker.Acquire(ctx, req.UserID)
	if err != nil {
		c.logger.Error("investment lock unavailable",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return nil, types.NewAppError(types.ErrCodeInternalLockUnavailable,
			"investment service is busy, please retry", err)
	}
	defer release()

	status, err := c.resolver.Resolve(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	decision, err := c.catalog.Decide(status, req)
	if err != nil {
		c.record("rejected", status.Level)
		c.logger.Info("investment rejected",
			slog.String("user_id", req.UserID),
			slog.String("level", status.Level.String()),
			slog.String("amount", req.Amount.String()),
			slog.String("code", string(types.CodeOf(err))),
		)
		return nil, err
	}

	inv := types.Investment{
		ID:              c.newID(),
		UserID:          req.UserID,
		Name:            req.Name,
		Amount:          req.Amount,
		Rate:            decision.Rate,
		Term:            req.Term,
		TermDays:        req.TermDays(),
		MembershipLevel: decision.RecordLevel,
		Status:          types.InvestmentActive,
		CreatedAt:       c.now(),
	}
	if err := c.investments.CreateInvestment(ctx, &inv); err != nil {
		return nil, err
	}

	c.logger.Info("investment created",
		slog.String("user_id", inv.UserID),
		slog.String("investment_id", inv.ID),
		slog.String("level", inv.MembershipLevel.String()),
		slog.String("path", string(decision.Path)),
		slog.String("amount", inv.Amount.String()),
	)
	c.record("accepted", inv.MembershipLevel)

	if decision.PromoteTo != types.LevelNone {
		// The record is already durable; finish the cache write even if the
		// caller goes away.
		c.promote(context.WithoutCancel(ctx), req.UserID, status.Level, decision.PromoteTo)
	}

	c.publish(ctx, inv, status.Level, decision.PromoteTo)

	return &Result{
		Investment: inv,
		Message:    decision.Message,
		Path:       decision.Path,
	}, nil
}

func (c *Committer) promote(ctx context.Context, userID string, from, to types.MembershipLevel) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.users.SetMembershipLevel(ctx, userID, to); err == nil {
			if c.metrics != nil {
				c.metrics.RecordUpgrade(from.String(), to.String())
			}
			return
		}
		if attempt < attempts {
			c.sleepFn(c.retry.Wait)
		}
	}

	// Self-heals: above Basic the tier is re-derived from the investment sum.
	c.logger.Error("membership level update failed after investment",
		slog.String("user_id", userID),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

func (c *Committer) publish(ctx context.Context, inv types.Investment, from, promoted types.MembershipLevel) {
	if c.publisher == nil {
		return
	}

	events := []Event{{
		Type:       EventInvestmentCreated,
		UserID:     inv.UserID,
		Investment: inv,
		FromLevel:  from,
		ToLevel:    inv.MembershipLevel,
		OccurredAt: inv.CreatedAt,
	}}
	if promoted != types.LevelNone {
		events = append(events, Event{
			Type:       EventMembershipUpgraded,
			UserID:     inv.UserID,
			Investment: inv,
			FromLevel:  from,
			ToLevel:    promoted,
			OccurredAt: inv.CreatedAt,
		})
	}

	for _, evt := range events {
		if err := c.publisher.Publish(ctx, evt); err != nil {
			c.logger.Warn("failed to publish domain event",
				slog.String("type", string(evt.Type)),
				slog.String("investment_id", inv.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Committer) record(outcome string, level types.MembershipLevel) {
	if c.metrics != nil {
		c.metrics.RecordInvestment(outcome, level.String())
	}
}
