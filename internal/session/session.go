// Package session implements the conversation orchestrator: it persists the
// user turn, assembles the prompt, races the backend against the call
// deadline and records the assistant reply.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/threadline/internal/backend"
	ctxengine "github.com/flemzord/threadline/internal/context"
	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/threadline/internal/session"

// persistTimeout bounds the assistant write, which runs detached from the
// caller's context.
const persistTimeout = 5 * time.Second

// Session is the single public entry point for sending messages. It is safe
// for concurrent use; turns are linked by explicit parent IDs, not by call
// order.
type Session struct {
	backend   backend.Backend
	store     store.MessageStore
	assembler *ctxengine.Assembler
	config    Config
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	newID     func() string
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// WithClock sets the time source for message timestamps and the prompt date.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator replaces the UUID v4 generator used for new IDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// New creates a Session. A nil counter falls back to a character-based
// estimate that ignores special tokens.
func New(b backend.Backend, st store.MessageStore, counter ctxengine.TokenCounter, cfg Config, opts ...Option) (*Session, error) {
	if b == nil {
		return nil, errors.New("session: backend is required")
	}
	if st == nil {
		return nil, errors.New("session: store is required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if counter == nil {
		counter = ctxengine.StripSpecialTokens(ctxengine.NewCharEstimator(0), cfg.Window.EndToken, cfg.Window.SepToken)
	}

	s := &Session{
		backend: b,
		store:   st,
		config:  cfg,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer(tracerName),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.assembler = ctxengine.NewAssembler(counter, st, cfg.Window)
	s.assembler.SetClock(s.now)
	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.config
}

// SendMessage sends text as a new user turn and returns the assistant reply.
//
// The user message is stored before the backend is called, so it survives a
// failed call. The reply's ParentMessageID is always the user message ID.
// A timed-out or canceled call returns ErrTimeout or ErrCanceled and never
// stores an assistant message. A failure to store the reply is logged and
// counted but does not fail the call.
func (s *Session) SendMessage(ctx context.Context, text string, opts SendOptions) (*message.ChatMessage, error) {
	start := s.now()
	mode := modeSingle
	switch {
	case opts.PrecomputedResponse != "":
		mode = modePrecomputed
	case opts.streaming():
		mode = modeStream
	}

	ctx, span := s.tracer.Start(ctx, "session.SendMessage",
		trace.WithAttributes(attribute.String("threadline.mode", mode)))
	defer span.End()

	reply, err := s.send(ctx, text, opts, mode, span)

	s.metrics.observeSend(outcomeOf(err), mode, s.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return reply, nil
}

func (s *Session) send(ctx context.Context, text string, opts SendOptions, mode string, span trace.Span) (*message.ChatMessage, error) {
	if err := s.validate(text, opts); err != nil {
		return nil, err
	}

	if opts.ConversationID == "" {
		opts.ConversationID = s.newID()
	}
	callerID := opts.MessageID != ""
	if !callerID {
		opts.MessageID = s.newID()
	}
	span.SetAttributes(
		attribute.String("threadline.conversation_id", opts.ConversationID),
		attribute.String("threadline.message_id", opts.MessageID),
	)

	user := &message.ChatMessage{
		ID:              opts.MessageID,
		Role:            message.RoleUser,
		Text:            text,
		ConversationID:  opts.ConversationID,
		ParentMessageID: opts.ParentMessageID,
		CreatedAt:       s.now(),
	}
	if err := s.persistUser(ctx, user, callerID); err != nil {
		return nil, err
	}

	// The deadline races the backend only; the user turn is already stored.
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = s.config.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reply := &message.ChatMessage{
		ID:              s.newID(),
		Role:            message.RoleAssistant,
		ConversationID:  opts.ConversationID,
		ParentMessageID: user.ID,
	}

	var resp backend.CompletionResponse
	if mode == modePrecomputed {
		resp = backend.CompletionResponse{Text: opts.PrecomputedResponse}
	} else {
		win, err := s.assemble(ctx, text, opts.ParentMessageID)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(
			attribute.Int("threadline.prompt_tokens", win.PromptTokens),
			attribute.Int("threadline.response_budget", win.ResponseBudget),
		)

		resp, err = s.complete(ctx, win, reply, opts)
		if err != nil {
			return nil, err
		}
	}

	reply.Text = strings.TrimSpace(resp.Text)
	reply.CreatedAt = s.now()
	reply.Detail = s.detailOf(resp, mode)

	s.persistReply(ctx, reply)
	return reply, nil
}

// validate rejects bad input before any store or network access.
func (s *Session) validate(text string, opts SendOptions) error {
	if text == "" {
		return validationError("text is required")
	}
	if opts.MessageID != "" && opts.MessageID == opts.ParentMessageID {
		return validationError("message id %q cannot be its own parent", opts.MessageID)
	}
	ids := []struct{ name, value string }{
		{"conversation id", opts.ConversationID},
		{"parent message id", opts.ParentMessageID},
		{"message id", opts.MessageID},
	}
	for _, id := range ids {
		if id.value != "" && !IsUUIDv4(id.value) {
			return validationError("%s %q is not a UUID v4", id.name, id.value)
		}
	}
	if opts.Timeout < 0 {
		return validationError("timeout must be non-negative")
	}
	if opts.PrecomputedResponse == "" {
		if c, ok := s.backend.(backend.Credentialed); ok && c.APIKey() == "" {
			return ErrMissingCredential
		}
	}
	return nil
}

func (s *Session) assemble(ctx context.Context, text, parentID string) (ctxengine.Window, error) {
	ctx, span := s.tracer.Start(ctx, "session.assemble")
	defer span.End()

	win, err := s.assembler.Assemble(ctx, text, parentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return ctxengine.Window{}, settleError(ctx)
		}
		return ctxengine.Window{}, fmt.Errorf("session: assemble prompt: %w", err)
	}

	level := slog.LevelDebug
	if s.config.Debug {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "prompt assembled",
		"prompt_tokens", win.PromptTokens,
		"response_budget", win.ResponseBudget,
		"turns", win.Turns,
		"truncated", win.Truncated,
	)
	s.metrics.observePrompt(win.PromptTokens)
	return win, nil
}

type completion struct {
	resp backend.CompletionResponse
	err  error
}

// complete races the backend against ctx. On expiry it cancels the
// backend call and returns without waiting for it.
func (s *Session) complete(ctx context.Context, win ctxengine.Window, reply *message.ChatMessage, opts SendOptions) (backend.CompletionResponse, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req := backend.CompletionRequest{
		Prompt:    win.Prompt,
		MaxTokens: win.ResponseBudget,
		Params:    s.config.Params,
	}

	// settle waits for an in-flight progress callback, so none runs after
	// complete returns.
	var (
		mu      sync.Mutex
		settled bool
	)
	settle := func() {
		mu.Lock()
		settled = true
		mu.Unlock()
	}
	var progress backend.ProgressFunc
	if opts.OnProgress != nil {
		progress = func(partial string) {
			mu.Lock()
			defer mu.Unlock()
			if settled {
				return
			}
			p := *reply
			p.Text = partial
			opts.OnProgress(p)
		}
	}

	done := make(chan completion, 1)
	go func() {
		var c completion
		if opts.streaming() {
			c.resp, c.err = s.stream(callCtx, req, progress)
		} else {
			c.resp, c.err = s.backend.Complete(callCtx, req)
		}
		done <- c
	}()

	select {
	case c := <-done:
		settle()
		if c.err != nil {
			if ctx.Err() != nil {
				return backend.CompletionResponse{}, settleError(ctx)
			}
			return backend.CompletionResponse{}, fmt.Errorf("session: completion: %w", c.err)
		}
		return c.resp, nil
	case <-ctx.Done():
		settle()
		s.logger.Warn("completion abandoned",
			"conversation_id", reply.ConversationID,
			"user_message_id", reply.ParentMessageID,
			"error", ctx.Err(),
		)
		return backend.CompletionResponse{}, settleError(ctx)
	}
}

func (s *Session) stream(ctx context.Context, req backend.CompletionRequest, progress backend.ProgressFunc) (backend.CompletionResponse, error) {
	ch, err := s.backend.Stream(ctx, req)
	if err != nil {
		return backend.CompletionResponse{}, err
	}
	return backend.Collect(ctx, ch, progress)
}

func (s *Session) detailOf(resp backend.CompletionResponse, mode string) *message.Detail {
	if mode == modePrecomputed {
		return nil
	}
	d := &message.Detail{
		ResponseID:   resp.ID,
		Model:        resp.Model,
		FinishReason: string(resp.FinishReason),
	}
	if d.Model == "" {
		d.Model = s.backend.ModelName()
	}
	if resp.Usage != nil {
		d.Usage = &message.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return d
}

// persistUser stores the user turn under the caller's context. A caller
// supplied id must be new: replacing a stored message would break id
// uniqueness and could close a cycle in the parent chain.
func (s *Session) persistUser(ctx context.Context, user *message.ChatMessage, callerID bool) error {
	if callerID {
		existing, err := s.store.Get(ctx, user.ID)
		if err != nil {
			if ctx.Err() != nil {
				return settleError(ctx)
			}
			return fmt.Errorf("%w: look up message id: %w", ErrStore, err)
		}
		if existing != nil {
			return validationError("message id %q already exists", user.ID)
		}
	}
	if err := s.store.Set(ctx, user.ID, user); err != nil {
		if ctx.Err() != nil {
			return settleError(ctx)
		}
		return fmt.Errorf("%w: user message: %w", ErrStore, err)
	}
	return nil
}

// persistReply writes the assistant message. The caller's cancellation does
// not apply: the reply has already been produced.
func (s *Session) persistReply(ctx context.Context, reply *message.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.Set(ctx, reply.ID, reply.Clone()); err != nil {
		s.metrics.persistFailed()
		s.logger.Error("failed to store assistant message",
			"conversation_id", reply.ConversationID,
			"message_id", reply.ID,
			"error", err,
		)
	}
}

// GetMessage returns a stored message, or nil when id is unknown.
func (s *Session) GetMessage(ctx context.Context, id string) (*message.ChatMessage, error) {
	if id == "" {
		return nil, validationError("message id is required")
	}
	return s.store.Get(ctx, id)
}

// APIKey returns the backend credential, or "" when the backend has none.
func (s *Session) APIKey() string {
	if c, ok := s.backend.(backend.Credentialed); ok {
		return c.APIKey()
	}
	return ""
}

// SetAPIKey replaces the backend credential for subsequent calls.
func (s *Session) SetAPIKey(key string) error {
	c, ok := s.backend.(backend.Credentialed)
	if !ok {
		return fmt.Errorf("session: backend %T does not take an api key", s.backend)
	}
	c.SetAPIKey(key)
	return nil
}

// CheckBackend runs the backend health check when the backend has one.
func (s *Session) CheckBackend(ctx context.Context) error {
	if hc, ok := s.backend.(backend.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// CheckStore pings the store when it is backed by a remote service.
func (s *Session) CheckStore(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// IsUUIDv4 reports whether s is a canonical RFC 4122 version 4 UUID.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrValidation):
		return outcomeValidation
	case errors.Is(err, ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrCanceled):
		return outcomeCanceled
	case errors.Is(err, backend.ErrMalformedResponse):
		return outcomeMalformed
	case errors.Is(err, backend.ErrBackend):
		return outcomeBackend
	case errors.Is(err, ErrStore):
		return outcomeStore
	default:
		return outcomeError
	}
}
