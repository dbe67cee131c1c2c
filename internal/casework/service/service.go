// Package service exposes the casework workflow operations. Every mutating
// operation is role gated, runs as one unit of work against the store and
// hands its events to the notification emitter only after commit.
package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/document"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/events"
	"github.com/oncoayuda/casework/internal/shared/metrics"
)

// Service runs the workflow operations.
type Service struct {
	store     domain.Store
	codes     *domain.CodeAllocator
	emitter   events.Emitter
	documents *document.Validator
	log       *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	phoneRegion string
	txTimeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithEmitter sets where committed events go. The default discards them.
func WithEmitter(e events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithDocuments sets the file reference validator. The default checks syntax only.
func WithDocuments(v *document.Validator) Option {
	return func(s *Service) { s.documents = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPhoneRegion sets the default region for guardian phone numbers.
func WithPhoneRegion(region string) Option {
	return func(s *Service) { s.phoneRegion = region }
}

// WithTxTimeout bounds each operation. Zero disables the bound.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

// New creates the service.
func New(store domain.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		codes:       domain.NewCodeAllocator(store),
		emitter:     events.Discard,
		documents:   document.NewValidator(nil),
		log:         log.Named("casework"),
		tracer:      otel.Tracer("casework"),
		now:         func() time.Time { return time.Now().UTC() },
		phoneRegion: "BO",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unit collects what a mutating operation produces inside its transaction.
type unit struct {
	pending []events.Event
}

func (u *unit) emit(ev events.Event) {
	u.pending = append(u.pending, ev)
}

// mutate authorizes actor for op and runs fn in one transaction. Events
// collected by fn are emitted once the transaction has committed.
func (s *Service) mutate(ctx context.Context, op auth.Operation, actor auth.Actor, fn func(ctx context.Context, tx domain.Tx, u *unit) error) error {
	return s.prepareAndMutate(ctx, op, actor, nil, fn)
}

// prepareAndMutate is mutate with a prepare step that runs after authorization
// and before the transaction opens. Code allocation and remote document checks
// go there so no transaction holds a connection while they wait.
func (s *Service) prepareAndMutate(ctx context.Context, op auth.Operation, actor auth.Actor, prepare func(ctx context.Context) error, fn func(ctx context.Context, tx domain.Tx, u *unit) error) error {
	ctx, span := s.start(ctx, op, actor)
	defer span.End()
	start := time.Now()

	if err := s.authorize(op, actor); err != nil {
		return s.finish(span, op, start, err)
	}

	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	if prepare != nil {
		if err := prepare(ctx); err != nil {
			return s.finish(span, op, start, err)
		}
	}

	var u unit
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		u = unit{}
		return fn(ctx, tx, &u)
	})
	if err != nil {
		return s.finish(span, op, start, err)
	}

	correlationID := middleware.GetReqID(ctx)
	for _, ev := range u.pending {
		s.emitter.Emit(ev.WithActor(actor.ID, string(actor.Role)).WithCorrelation(correlationID))
	}
	return s.finish(span, op, start, nil)
}

// query authorizes actor for a read and runs fn outside a transaction.
func (s *Service) query(ctx context.Context, op auth.Operation, actor auth.Actor, fn func(ctx context.Context) error) error {
	ctx, span := s.start(ctx, op, actor)
	defer span.End()
	start := time.Now()

	if err := s.authorize(op, actor); err != nil {
		return s.finish(span, op, start, err)
	}
	return s.finish(span, op, start, fn(ctx))
}

func (s *Service) start(ctx context.Context, op auth.Operation, actor auth.Actor) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, string(op),
		trace.WithAttributes(
			attribute.String("casework.operation", string(op)),
			attribute.String("casework.actor_id", actor.ID.String()),
			attribute.String("casework.actor_role", string(actor.Role)),
		),
	)
}

func (s *Service) authorize(op auth.Operation, actor auth.Actor) error {
	err := auth.Authorize(op, actor)
	metrics.RecordAuthorizationDecision(string(op), string(actor.Role), err == nil)
	if err != nil {
		s.log.Warn("operation denied",
			zap.String("operation", string(op)),
			zap.String("actor_id", actor.ID.String()),
			zap.String("role", string(actor.Role)),
		)
	}
	return err
}

// finish normalizes err, records the outcome and closes the span status.
func (s *Service) finish(span trace.Span, op auth.Operation, start time.Time, err error) error {
	err = normalize(err)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if appErr, ok := errors.As(err); ok {
			outcome = strings.ToLower(appErr.Code)
			if appErr.HTTPStatus >= 500 {
				s.log.Error("operation failed", zap.String("operation", string(op)), zap.Error(err))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	metrics.RecordOperation(string(op), outcome, time.Since(start))
	return err
}

// normalize maps context expiry to TIMEOUT and anything unclassified to INTERNAL.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Timeout("operation did not complete in time")
	}
	return errors.Internal(err)
}
