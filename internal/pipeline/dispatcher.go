// Package pipeline runs questions through the schema → prompt → model →
// guard → execute → format chain and sends exactly one reply per question.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/execute"
	"github.com/askdb/askdb/internal/failure"
	"github.com/askdb/askdb/internal/format"
	"github.com/askdb/askdb/internal/guard"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/prompt"
	"github.com/askdb/askdb/internal/schema"
)

// Question is one inbound message. Sender identifies who asked, Chat is
// where the reply goes; for direct messages the two are usually equal.
type Question struct {
	Sender     string
	Chat       string
	Text       string
	ReceivedAt time.Time
}

type SchemaSource interface {
	Snapshot(ctx context.Context) (schema.Snapshot, error)
}

type Generator interface {
	Generate(ctx context.Context, promptText string) (string, error)
}

type StatementRunner interface {
	Run(ctx context.Context, sqlText string) (execute.Result, error)
}

type Replier interface {
	Reply(ctx context.Context, chat, text string) error
}

type AccessPolicy interface {
	Authorized(sender string) bool
	WriteAllowed(sender string) bool
}

type Dependencies struct {
	Logger    *slog.Logger
	Schema    SchemaSource
	Generator Generator
	Runner    StatementRunner
	Replier   Replier
	Policy    AccessPolicy
	Formatter *format.Formatter
	// Running gates dispatch; questions arriving while it reports false
	// are dropped without a reply. Nil means always running.
	Running func() bool
}

// Dispatcher serializes questions per sender so one sender's questions are
// answered in arrival order, while different senders proceed concurrently.
type Dispatcher struct {
	ctx  context.Context
	deps Dependencies

	mu     sync.Mutex
	queues map[string]chan Question
	closed bool
	wg     sync.WaitGroup
}

const senderQueueDepth = 16

func NewDispatcher(ctx context.Context, deps Dependencies) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Running == nil {
		deps.Running = func() bool { return true }
	}
	return &Dispatcher{
		ctx:    ctx,
		deps:   deps,
		queues: make(map[string]chan Question),
	}
}

// Dispatch queues a question for its sender's worker. Questions arriving
// while the engine is not running are dropped; once running, every question
// gets exactly one reply, so a full sender queue answers with a fixed busy
// message instead of dropping.
func (d *Dispatcher) Dispatch(q Question) {
	if !d.deps.Running() {
		d.deps.Logger.Warn("question dropped, engine not running", "sender", q.Sender)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.deps.Logger.Warn("question dropped, dispatcher draining", "sender", q.Sender)
		return
	}
	queue, ok := d.queues[q.Sender]
	if !ok {
		queue = make(chan Question, senderQueueDepth)
		d.queues[q.Sender] = queue
		d.wg.Add(1)
		go d.worker(queue)
	}
	d.mu.Unlock()

	select {
	case queue <- q:
	default:
		logger := d.deps.Logger.With("sender", q.Sender)
		logger.Warn("sender queue full, answering busy")
		d.reply(d.ctx, logger, q, d.deps.Formatter.Busy())
	}
}

// Drain stops accepting questions and waits for in-flight work, up to the
// context deadline.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, queue := range d.queues {
			close(queue)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(queue chan Question) {
	defer d.wg.Done()
	for q := range queue {
		d.handle(d.ctx, q)
	}
}

func (d *Dispatcher) handle(ctx context.Context, q Question) {
	observability.ObserveQuestion()
	logger := d.deps.Logger.With("sender", q.Sender)

	if !d.deps.Policy.Authorized(q.Sender) {
		d.replyFailure(ctx, logger, q, failure.Newf(failure.KindUnauthorized, "sender %s is not whitelisted", q.Sender))
		return
	}

	if text, ok := d.handleCommand(ctx, logger, q); ok {
		d.reply(ctx, logger, q, text)
		return
	}

	snap, err := d.deps.Schema.Snapshot(ctx)
	if err != nil {
		d.replyFailure(ctx, logger, q, err)
		return
	}

	sqlText, err := d.deps.Generator.Generate(ctx, prompt.Compose(q.Text, snap))
	if err != nil {
		d.replyFailure(ctx, logger, q, err)
		return
	}

	statement := guard.Classify(sqlText)
	if err := guard.Check(statement, d.deps.Policy.WriteAllowed(q.Sender)); err != nil {
		logger.Warn("statement rejected", "class", statement.Class, "error", observability.Mask(err.Error()))
		d.replyFailure(ctx, logger, q, err)
		return
	}

	result, err := d.deps.Runner.Run(ctx, sqlText)
	if err != nil {
		d.replyFailure(ctx, logger, q, err)
		return
	}

	logger.Info("question answered", "rows", result.RowCount, "truncated", result.Truncated, "duration", result.Duration)
	d.reply(ctx, logger, q, d.deps.Formatter.Success(sqlText, result))
}

// handleCommand answers the small command surface directly, skipping the
// model entirely. Commands run after authorization.
func (d *Dispatcher) handleCommand(ctx context.Context, logger *slog.Logger, q Question) (string, bool) {
	command, _, _ := strings.Cut(strings.TrimSpace(q.Text), " ")
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	switch command {
	case "/start":
		return "Hi! Ask me a question about the database in plain language and I will answer it with a query. Send /help for details.", true
	case "/help":
		return "Ask a question in plain language, for example: how many employees are there?\n\nCommands:\n/schema - show the tables I can query\n/help - this message", true
	case "/schema":
		snap, err := d.deps.Schema.Snapshot(ctx)
		if err != nil {
			logger.Warn("schema command failed", "error", observability.Mask(err.Error()))
			return d.formatterFailureText(err), true
		}
		return snap.Text(), true
	default:
		return "", false
	}
}

func (d *Dispatcher) reply(ctx context.Context, logger *slog.Logger, q Question, text string) {
	if err := d.deps.Replier.Reply(ctx, q.Chat, text); err != nil {
		logger.Error("reply failed", "error", observability.Mask(err.Error()))
		return
	}
	observability.ObserveReply()
}

func (d *Dispatcher) replyFailure(ctx context.Context, logger *slog.Logger, q Question, err error) {
	fail := failure.As(err)
	if fail == nil {
		fail = failure.Wrap(failure.KindExecutionError, err)
	}
	observability.ObserveFailure(string(fail.Kind))
	logger.Warn("question failed", "kind", fail.Kind, "error", observability.Mask(fail.Error()))
	d.reply(ctx, logger, q, d.deps.Formatter.Failure(fail))
}

func (d *Dispatcher) formatterFailureText(err error) string {
	fail := failure.As(err)
	if fail == nil {
		fail = failure.Wrap(failure.KindSchemaUnavailable, err)
	}
	observability.ObserveFailure(string(fail.Kind))
	return d.deps.Formatter.Failure(fail)
}
