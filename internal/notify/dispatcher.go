// Package notify delivers one message per new item and records every
// delivered item in the last-seen store.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"streamwatch/internal/detect"
	"streamwatch/internal/metrics"
	"streamwatch/internal/model"
	"streamwatch/internal/storage"
)

// Notifier sends a single message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Pacer spaces out consecutive sends. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a limiter allowing one send per delay.
func NewPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Report summarises one dispatch.
type Report struct {
	New        int
	Sent       int
	Failed     int
	Pruned     int
	SaveErrors int
}

// DispatchError reports items that could not be delivered or recorded.
// Undelivered items stay out of the last-seen set and are retried on the
// next cycle.
type DispatchError struct {
	Failed     int
	SaveErrors int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch: %d notifications failed, %d state writes failed", e.Failed, e.SaveErrors)
}

// Err returns a *DispatchError when anything went wrong, else nil.
func (r Report) Err() error {
	if r.Failed == 0 && r.SaveErrors == 0 {
		return nil
	}
	return &DispatchError{Failed: r.Failed, SaveErrors: r.SaveErrors}
}

// Dispatcher delivers notifications for one or more sources. Sends are
// serialised through a shared pacer.
type Dispatcher struct {
	notifier Notifier
	store    storage.Store
	pacer    Pacer
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New creates a Dispatcher. m may be nil.
func New(notifier Notifier, store storage.Store, pacer Pacer, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		store:    store,
		pacer:    pacer,
		metrics:  m,
		log:      log,
	}
}

// Dispatch notifies about items, which must be the new items of res in
// delivery order, and returns the last-seen set after the batch.
//
// The pruned base set is persisted first when it differs from current.
// Each delivered identifier is then merged and saved before the next
// item is sent, so a crash loses at most the in-flight notification.
// A failed notification is logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, src model.Source, current model.IDSet, res detect.Result, items []model.Item) (model.IDSet, Report) {
	rep := Report{New: len(items)}
	// A delivered notification must be recorded even during shutdown.
	saveCtx := context.WithoutCancel(ctx)

	seen := res.Base()
	rep.Pruned = current.Minus(seen).Len()
	if !seen.Equal(current) {
		if err := d.store.Save(saveCtx, src.Name, seen); err != nil {
			rep.SaveErrors++
			d.metrics.SaveError(src.Name)
			d.log.Error("save last seen", "source", src.Name, "error", err)
		}
	}

	for _, item := range items {
		if err := d.pacer.Wait(ctx); err != nil {
			d.log.Warn("dispatch interrupted", "source", src.Name, "remaining", len(items)-rep.Sent-rep.Failed, "error", err)
			break
		}

		if err := d.notifier.Notify(ctx, src.ChatID, Format(src, item)); err != nil {
			rep.Failed++
			d.metrics.Notification(src.Name, false)
			d.log.Error("send notification", "source", src.Name, "item", item.ID(), "error", err)
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		rep.Sent++
		d.metrics.Notification(src.Name, true)
		d.log.Info("notified", "source", src.Name, "item", item.ID(), "chat_id", src.ChatID)

		next := seen.Clone()
		next.Add(item.ID())
		seen = next
		if err := d.store.Save(saveCtx, src.Name, seen); err != nil {
			rep.SaveErrors++
			d.metrics.SaveError(src.Name)
			d.log.Error("save last seen", "source", src.Name, "item", item.ID(), "error", err)
		}
	}

	d.metrics.Tracked(src.Name, seen.Len())
	return seen, rep
}
