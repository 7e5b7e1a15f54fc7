package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// Worker drains the queued backlog for each channel, applying the retry
// policy and updating record state per item.
//
// Known limitation: a sink timeout may follow a send that actually succeeded
// remotely. The worker does not verify remotely, so a retry can produce a
// duplicate side effect; this is an accepted risk of the design.
type Worker struct {
	deliveries ports.DeliveryRepository
	sinks      map[domain.Channel]ports.Sink
	budget     *Budget
	limiter    *rate.Limiter
	timeout    time.Duration
	maxTries   int
	now        func() time.Time
	logger     *slog.Logger
}

// WorkerOptions tunes a worker run.
type WorkerOptions struct {
	// SendDelay paces consecutive sink invocations within a batch.
	SendDelay time.Duration
	// SendTimeout bounds each sink invocation; a timeout counts as a failure.
	SendTimeout time.Duration
	// Budget guards the social channel; nil means no local budget.
	Budget *Budget
	Now    func() time.Time
}

// NewWorker wires sinks by channel.
func NewWorker(deliveries ports.DeliveryRepository, sinks []ports.Sink, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.SendDelay <= 0 {
		opts.SendDelay = 2 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	byChannel := make(map[domain.Channel]ports.Sink, len(sinks))
	for _, s := range sinks {
		byChannel[s.Channel()] = s
	}

	return &Worker{
		deliveries: deliveries,
		sinks:      byChannel,
		budget:     opts.Budget,
		limiter:    rate.NewLimiter(rate.Every(opts.SendDelay), 1),
		timeout:    opts.SendTimeout,
		maxTries:   domain.MaxDeliveryAttempts,
		now:        opts.Now,
		logger:     logger,
	}
}

// ProcessChannel fetches up to limit queued records for the channel, oldest
// first, and attempts each one. It returns the number of records completed.
//
// Per record: an incomplete payload is logged and skipped without consuming
// an attempt; a send failure increments the attempt counter and either
// requeues the record or, at the attempt ceiling, marks it failed. When the
// social budget is exhausted the remaining records stay queued untouched for
// a later run.
func (w *Worker) ProcessChannel(ctx context.Context, ch domain.Channel, limit int) (int, error) {
	sink, ok := w.sinks[ch]
	if !ok {
		return 0, fmt.Errorf("no sink registered for channel %q", ch)
	}

	records, err := w.deliveries.ListQueued(ctx, ch, limit)
	if err != nil {
		return 0, fmt.Errorf("list queued %s deliveries: %w", ch, err)
	}

	processed := 0
	for _, d := range records {
		if err := d.Payload.Validate(ch); err != nil {
			w.logger.Warn("invalid delivery payload, skipping", "delivery", d.ID, "error", err)
			continue
		}

		if ch == domain.ChannelSocial && w.budget != nil && !w.budget.Allow() {
			w.logger.Info("social budget exhausted, leaving remaining deliveries queued",
				"channel", ch, "remaining", len(records)-processed)
			break
		}

		claimed, err := w.deliveries.Claim(ctx, d.ID)
		if err != nil {
			return processed, fmt.Errorf("claim delivery %s: %w", d.ID, err)
		}
		if !claimed {
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			// Run cancelled mid-batch; put the claimed record back.
			_ = w.deliveries.Release(ctx, d.ID)
			return processed, err
		}

		if w.attempt(ctx, sink, d) {
			processed++
		}
	}
	return processed, nil
}

// ProcessAll runs every registered channel. Channel failures do not stop the
// other channels.
func (w *Worker) ProcessAll(ctx context.Context, limit int) int {
	total := 0
	for ch := range w.sinks {
		n, err := w.ProcessChannel(ctx, ch, limit)
		total += n
		if err != nil {
			w.logger.Error("channel processing failed", "channel", ch, "error", err)
		}
	}
	return total
}

// attempt performs one send and applies the state transition. Returns true on
// completion.
func (w *Worker) attempt(ctx context.Context, sink ports.Sink, d domain.Delivery) bool {
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err := sink.Send(sendCtx, d.Payload)
	cancel()

	now := w.now().UTC()
	if err == nil {
		if mErr := w.deliveries.MarkCompleted(ctx, d.ID, now); mErr != nil {
			w.logger.Error("mark completed failed", "delivery", d.ID, "error", mErr)
			return false
		}
		if d.Channel == domain.ChannelSocial && w.budget != nil {
			w.budget.Record()
		}
		w.logger.Info("delivery completed", "delivery", d.ID, "channel", d.Channel)
		return true
	}

	if errors.Is(err, domain.ErrRateLimited) && d.Channel == domain.ChannelSocial && w.budget != nil {
		w.budget.ExhaustHour()
	}

	attempts := d.Attempts + 1
	if attempts >= w.maxTries {
		if mErr := w.deliveries.MarkFailed(ctx, d.ID, attempts, err.Error(), now); mErr != nil {
			w.logger.Error("mark failed failed", "delivery", d.ID, "error", mErr)
		}
		w.logger.Error("delivery failed permanently",
			"delivery", d.ID, "channel", d.Channel, "attempts", attempts, "error", err)
		return false
	}

	if mErr := w.deliveries.MarkRetry(ctx, d.ID, attempts, err.Error(), now); mErr != nil {
		w.logger.Error("mark retry failed", "delivery", d.ID, "error", mErr)
	}
	w.logger.Warn("delivery failed, will retry",
		"delivery", d.ID, "channel", d.Channel, "attempts", attempts, "error", err)
	return false
}

// RequeueHeld releases held records for a channel after reconfiguration has
// enabled it.
func (w *Worker) RequeueHeld(ctx context.Context, ch domain.Channel) (int, error) {
	n, err := w.deliveries.RequeueHeld(ctx, ch)
	if err != nil {
		return 0, fmt.Errorf("requeue held %s deliveries: %w", ch, err)
	}
	if n > 0 {
		w.logger.Info("requeued held deliveries", "channel", ch, "count", n)
	}
	return n, nil
}
