// Package aml implements blocklist, aggregate-window, and structuring
// checks against a Redis-backed transaction history with a Postgres
// fallback (spec.md §4.6).
package aml

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// historyMaxItems bounds how many recent transactions are kept per
// customer, mirroring the original AML_HISTORY_MAX_ITEMS constant. LRange is
// called with (0, historyMaxItems) inclusive, one past LTrim's upper bound,
// matching the original implementation's range.
const historyMaxItems = 500

// ReadRepository is the DB fallback consulted when Redis history is
// unreadable.
type ReadRepository interface {
	SumOutgoingSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (domain.Money, error)
	CountNearThresholdSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time, low, high domain.Money) (int, error)
}

type Config struct {
	BlocklistDestinations     map[string]bool
	TotalWindowSeconds        int64
	TotalThresholdAmount      domain.Money
	StructuringWindowSeconds  int64
	StructuringCountThreshold int
}

type Engine struct {
	cache  cache.Cache
	config Config
}

func NewEngine(c cache.Cache, config Config) *Engine {
	return &Engine{cache: c, config: config}
}

func historyKey(customerID string) string {
	return fmt.Sprintf("aml:history:%s", customerID)
}

// Evaluate runs the blocklist check, then the aggregate-window check, then
// the structuring check, returning the first non-ALLOW decision reached.
func (e *Engine) Evaluate(
	ctx context.Context,
	repo ReadRepository,
	customerID string,
	rail domain.PaymentMethod,
	amount domain.Money,
	destination *string,
	policy *domain.LimitsPolicy,
) (domain.AmlDecision, error) {
	if destination != nil && e.config.BlocklistDestinations[*destination] {
		return domain.AmlBlock, nil
	}

	totalOutgoing, err := e.totalOutgoingRecent(ctx, repo, customerID, rail)
	if err != nil {
		return "", err
	}
	if totalOutgoing.Add(amount).GT(e.config.TotalThresholdAmount) {
		return domain.AmlReview, nil
	}

	nearCount, err := e.nearThresholdCount(ctx, repo, customerID, rail, policy.MaxAmount)
	if err != nil {
		return "", err
	}
	if amount.GTE(policy.MaxAmount.MulFrac(95, 100)) {
		nearCount++
	}
	if nearCount >= e.config.StructuringCountThreshold {
		return domain.AmlReview, nil
	}

	return domain.AmlAllow, nil
}

// RecordOutgoing appends an admitted transaction to the customer's history;
// the coordinator calls it for every admission that did not end BLOCKED,
// before any provider confirmation. Redis errors are swallowed: history is an
// optimization, not a source of truth.
func (e *Engine) RecordOutgoing(ctx context.Context, customerID string, rail domain.PaymentMethod, amount domain.Money) {
	key := historyKey(customerID)
	payload := fmt.Sprintf("%d|%s|%s", time.Now().Unix(), rail, amount.String())

	if err := e.cache.LPush(ctx, key, payload); err != nil {
		return
	}
	if err := e.cache.LTrim(ctx, key, 0, historyMaxItems-1); err != nil {
		return
	}
	ttl := e.config.TotalWindowSeconds
	if e.config.StructuringWindowSeconds > ttl {
		ttl = e.config.StructuringWindowSeconds
	}
	_ = e.cache.Expire(ctx, key, time.Duration(ttl)*time.Second)
}

type historyEntry struct {
	timestamp int64
	rail      string
	amount    domain.Money
}

func (e *Engine) readHistory(ctx context.Context, customerID string) ([]historyEntry, bool) {
	raw, err := e.cache.LRange(ctx, historyKey(customerID), 0, historyMaxItems)
	if err != nil {
		return nil, false
	}
	entries := make([]historyEntry, 0, len(raw))
	for _, line := range raw {
		entry, ok := parseEntry(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, true
}

func parseEntry(line string) (historyEntry, bool) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return historyEntry{}, false
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return historyEntry{}, false
	}
	amount, err := domain.ParseMoney(parts[2])
	if err != nil {
		return historyEntry{}, false
	}
	return historyEntry{timestamp: ts, rail: parts[1], amount: amount}, true
}

func (e *Engine) totalOutgoingRecent(ctx context.Context, repo ReadRepository, customerID string, rail domain.PaymentMethod) (domain.Money, error) {
	entries, ok := e.readHistory(ctx, customerID)
	if ok {
		cutoff := time.Now().Unix() - e.config.TotalWindowSeconds
		total := domain.NewMoneyFromCents(0)
		for _, entry := range entries {
			if entry.timestamp >= cutoff && entry.rail == string(rail) {
				total = total.Add(entry.amount)
			}
		}
		return total, nil
	}

	since := time.Now().UTC().Add(-time.Duration(e.config.TotalWindowSeconds) * time.Second)
	return repo.SumOutgoingSince(ctx, customerID, rail, since)
}

func (e *Engine) nearThresholdCount(ctx context.Context, repo ReadRepository, customerID string, rail domain.PaymentMethod, maxAmount domain.Money) (int, error) {
	lowAmount := maxAmount.MulFrac(95, 100)

	entries, ok := e.readHistory(ctx, customerID)
	if ok {
		cutoff := time.Now().Unix() - e.config.StructuringWindowSeconds
		count := 0
		for _, entry := range entries {
			if entry.timestamp < cutoff || entry.rail != string(rail) {
				continue
			}
			if entry.amount.GTE(lowAmount) && entry.amount.LTE(maxAmount) {
				count++
			}
		}
		return count, nil
	}

	since := time.Now().UTC().Add(-time.Duration(e.config.StructuringWindowSeconds) * time.Second)
	return repo.CountNearThresholdSince(ctx, customerID, rail, since, lowAmount, maxAmount)
}
