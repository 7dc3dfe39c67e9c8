package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tailspan/tailspan/pkg/demo/bindings"
	hostService "github.com/tailspan/tailspan/pkg/host/service"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

const (
	orderCacheTTL  = 5 * time.Minute
	orderIndexName = "order_summaries"

	// OrderViewedSubject carries one message per successful order lookup.
	OrderViewedSubject = "orders.viewed"
)

// OrderWorkerImpl is the demo application whose execution the tail stream
// describes: an order-lookup endpoint that reads through a key-value cache,
// falls back to the relational store, archives a summary document, publishes a
// queue message and optionally calls a webhook. Every binding call opens a
// child span on the invocation trace.
type OrderWorkerImpl struct {
	cache      bindings.KVCache
	store      bindings.SQLStore
	docs       bindings.DocStore
	queue      bindings.Queue
	fetcher    bindings.Fetcher
	webhookURL string
	logger     *zap.Logger
}

func NewOrderWorkerImpl(
	cache bindings.KVCache,
	store bindings.SQLStore,
	docs bindings.DocStore,
	queue bindings.Queue,
	fetcher bindings.Fetcher,
	webhookURL string,
	logger *zap.Logger,
) *OrderWorkerImpl {
	return &OrderWorkerImpl{
		cache:      cache,
		store:      store,
		docs:       docs,
		queue:      queue,
		fetcher:    fetcher,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

func (w *OrderWorkerImpl) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trace := hostService.TraceFromContext(ctx)
	orderID := r.URL.Query().Get("order")
	if orderID == "" {
		http.Error(rw, "order parameter required", http.StatusBadRequest)
		return
	}

	summary, err := w.lookupOrder(r, orderID)
	if err != nil {
		if trace != nil {
			trace.Log(ctx, "error", fmt.Sprintf("order lookup failed: %v", err))
		}
		http.Error(rw, "order lookup failed", http.StatusInternalServerError)
		return
	}

	w.recordView(r, orderID, summary)

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(summary); err != nil {
		w.logger.Error("Failed to write order response", zap.Error(err))
	}
}

func (w *OrderWorkerImpl) lookupOrder(r *http.Request, orderID string) (map[string]interface{}, error) {
	ctx := r.Context()
	trace := hostService.TraceFromContext(ctx)

	cacheSpan := openSpan(trace, ctx, "kv.get", tailModel.Attribute{Name: "kv.key", Value: orderID})
	cached, err := w.cache.Get(ctx, orderID)
	if err == nil {
		closeSpan(trace, ctx, cacheSpan, "ok")
		var summary map[string]interface{}
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			return summary, nil
		}
		// Cached value went stale or unreadable, fall back to the store.
	} else if errors.Is(err, bindings.ErrKeyNotFound) {
		closeSpan(trace, ctx, cacheSpan, "ok")
	} else {
		closeSpan(trace, ctx, cacheSpan, "error")
	}

	querySpan := openSpan(trace, ctx, "db.query", tailModel.Attribute{Name: "db.system", Value: "postgresql"})
	rows, err := w.store.Query(
		ctx,
		"SELECT id, customer, total_cents, status FROM orders WHERE id = $1",
		orderID,
	)
	if err != nil {
		closeSpan(trace, ctx, querySpan, "error")
		return nil, fmt.Errorf("failed to query order %s: %w", orderID, err)
	}
	closeSpan(trace, ctx, querySpan, "ok")
	if len(rows) == 0 {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	summary := rows[0]

	summaryJSON, err := json.Marshal(summary)
	if err == nil {
		putSpan := openSpan(trace, ctx, "kv.put")
		if err := w.cache.Put(ctx, orderID, string(summaryJSON), orderCacheTTL); err != nil {
			closeSpan(trace, ctx, putSpan, "error")
			w.logger.Warn("Failed to cache order summary", zap.Error(err))
		} else {
			closeSpan(trace, ctx, putSpan, "ok")
		}
	}
	return summary, nil
}

// recordView archives the lookup and notifies downstream consumers. Failures
// here are logged but never fail the request.
func (w *OrderWorkerImpl) recordView(r *http.Request, orderID string, summary map[string]interface{}) {
	ctx := r.Context()
	trace := hostService.TraceFromContext(ctx)

	docSpan := openSpan(trace, ctx, "docs.put", tailModel.Attribute{Name: "docs.index", Value: orderIndexName})
	document := map[string]interface{}{
		"order_id":  orderID,
		"viewed_at": time.Now().UTC().Format(time.RFC3339),
		"summary":   summary,
	}
	if err := w.docs.Put(ctx, orderIndexName, fmt.Sprintf("%s-%d", orderID, time.Now().UnixNano()), document); err != nil {
		closeSpan(trace, ctx, docSpan, "error")
		w.logger.Warn("Failed to archive order view", zap.Error(err))
	} else {
		closeSpan(trace, ctx, docSpan, "ok")
	}

	publishSpan := openSpan(trace, ctx, "queue.publish", tailModel.Attribute{Name: "queue.subject", Value: OrderViewedSubject})
	if err := w.queue.Publish(ctx, OrderViewedSubject, []byte(orderID)); err != nil {
		closeSpan(trace, ctx, publishSpan, "error")
		w.logger.Warn("Failed to publish order view", zap.Error(err))
	} else {
		closeSpan(trace, ctx, publishSpan, "ok")
	}

	if w.webhookURL != "" {
		fetchSpan := openSpan(trace, ctx, "fetch.webhook", tailModel.Attribute{Name: "http.url", Value: w.webhookURL})
		status, _, err := w.fetcher.Fetch(ctx, w.webhookURL)
		if err != nil {
			closeSpan(trace, ctx, fetchSpan, "error")
			w.logger.Warn("Webhook call failed", zap.Error(err))
		} else {
			if trace != nil {
				trace.AddAttributes(ctx, fetchSpan, []tailModel.Attribute{
					{Name: "http.response.status_code", Value: status},
				})
			}
			closeSpan(trace, ctx, fetchSpan, "ok")
		}
	}
}

func openSpan(
	trace *hostService.InvocationTrace,
	ctx context.Context,
	name string,
	attributes ...tailModel.Attribute,
) string {
	if trace == nil {
		return ""
	}
	return trace.OpenSpan(ctx, name, attributes...)
}

func closeSpan(trace *hostService.InvocationTrace, ctx context.Context, spanID string, outcome string) {
	if trace == nil || spanID == "" {
		return
	}
	trace.CloseSpan(ctx, spanID, outcome)
}
