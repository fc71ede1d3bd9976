// Package dashboard keeps the operator view of the sale up to date.
//
// A Hub owns a single goroutine that subscribes to the submission
// collection. Every change notification triggers a full read and a fresh
// reconciliation; the resulting View is published as an immutable snapshot.
package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mint-desk/pkg/reconcile"
	"mint-desk/pkg/rules"
	"mint-desk/pkg/store"
)

var tracer = otel.Tracer("mint-desk/dashboard")

type Hub struct {
	collection store.Collection
	path       string
	rules      *rules.Config
	log        *zap.Logger
	now        func() time.Time

	current   atomic.Pointer[reconcile.View]
	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	next      int
	listeners map[int]chan *reconcile.View
}

func NewHub(collection store.Collection, path string, cfg *rules.Config, log *zap.Logger) *Hub {
	return &Hub{
		collection: collection,
		path:       path,
		rules:      cfg,
		log:        log,
		now:        time.Now,
		ready:      make(chan struct{}),
		listeners:  make(map[int]chan *reconcile.View),
	}
}

// Run subscribes to the collection and rebuilds the view on every change
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	changes := make(chan struct{}, 1)
	unsubscribe, err := h.collection.Subscribe(ctx, h.path, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	h.log.Info("Dashboard listening", zap.String("path", h.path))
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Dashboard stopped")
			return nil
		case <-changes:
			h.refresh(ctx)
		}
	}
}

func (h *Hub) refresh(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()

	entries, err := h.collection.ReadAll(ctx, h.path)
	if err != nil {
		// keep serving the previous view
		span.RecordError(err)
		span.SetStatus(codes.Error, "read")
		h.log.Warn("Error reading submissions", zap.Error(err))
		return
	}
	view := reconcile.Reconcile(h.rules, store.Records(entries), h.now())
	span.SetAttributes(
		attribute.Int("mint.people", len(view.Rows)),
		attribute.Int("mint.submissions", view.Submissions),
	)
	h.current.Store(view)
	h.readyOnce.Do(func() { close(h.ready) })
	h.publish(view)

	h.log.Debug("Dashboard refreshed",
		zap.Int("people", len(view.Rows)),
		zap.Int("submissions", view.Submissions),
		zap.String("next_token_id", view.NextTokenID))
}

// Current returns the latest view, or nil before the first one is built.
func (h *Hub) Current() *reconcile.View {
	return h.current.Load()
}

// Ready is closed once the first view has been built.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Listen returns a channel of views. A slow reader only ever sees the most
// recent one. The channel starts with the current view when there is one.
func (h *Hub) Listen() (<-chan *reconcile.View, func()) {
	ch := make(chan *reconcile.View, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = ch
	if v := h.current.Load(); v != nil {
		ch <- v
	}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *Hub) publish(view *reconcile.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- view:
			continue
		default:
		}
		// drop the stale view the reader has not taken yet
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}
