package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"darky/internal/core"
)

// State is the full persisted picture handed to the tracker at startup.
type State struct {
	Gifts   []core.Gift
	Years   []int
	Budgets map[int]int64
	Names   map[int][]string
}

// Adapter serializes the tracker's entity sets to and from a BlobStore and
// owns the demo-seeding policy. Loads never fail: a missing or unreadable
// blob falls back to the bundled default for that key with a warning.
type Adapter struct {
	store BlobStore
	now   func() time.Time

	mu     sync.Mutex
	seeded bool
}

func NewAdapter(store BlobStore) *Adapter {
	return &Adapter{store: store, now: time.Now}
}

// EnsureDefaults seeds all persisted keys from the bundled demo data. It
// runs at most once per process; the process plays the role the browser
// session played in the original seeding scheme.
func (a *Adapter) EnsureDefaults(ctx context.Context) error {
	a.mu.Lock()
	if a.seeded {
		a.mu.Unlock()
		return nil
	}
	a.seeded = true
	a.mu.Unlock()

	gifts := normalizeGifts(DemoGifts())
	if err := a.SaveGifts(ctx, gifts); err != nil {
		return fmt.Errorf("seed gifts: %w", err)
	}
	if err := a.SaveYears(ctx, DemoExtraYears()); err != nil {
		return fmt.Errorf("seed years: %w", err)
	}
	if err := a.SaveBudgets(ctx, DemoBudgets()); err != nil {
		return fmt.Errorf("seed budgets: %w", err)
	}
	if err := a.SaveNames(ctx, DemoNames(a.now())); err != nil {
		return fmt.Errorf("seed names: %w", err)
	}
	slog.InfoContext(ctx, "Seeded demo data", "gifts", len(gifts))
	return nil
}

// Load reads all entity sets, applying per-key fallbacks. It never returns
// an error; storage trouble degrades to defaults.
func (a *Adapter) Load(ctx context.Context) State {
	st := State{}

	var gifts []core.Gift
	if a.loadKey(ctx, KeyGifts, &gifts) {
		st.Gifts = normalizeGifts(gifts)
	} else {
		st.Gifts = normalizeGifts(DemoGifts())
	}

	var years []int
	if a.loadKey(ctx, KeyYears, &years) {
		st.Years = years
	} else {
		st.Years = DemoExtraYears()
	}

	var budgets map[int]int64
	if a.loadKey(ctx, KeyBudgets, &budgets) && budgets != nil {
		st.Budgets = budgets
	} else {
		st.Budgets = DemoBudgets()
	}

	var names map[int][]string
	if a.loadKey(ctx, KeyNames, &names) && len(names) > 0 {
		st.Names = cleanNames(names)
	} else {
		st.Names = DemoNames(a.now())
	}

	return st
}

// loadKey unmarshals one blob into dst, reporting whether a usable value was
// found. Malformed JSON is logged and treated the same as a missing key.
func (a *Adapter) loadKey(ctx context.Context, key string, dst any) bool {
	raw, ok, err := a.store.Load(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load stored value, using default", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.WarnContext(ctx, "Malformed stored value, using default", "key", key, "error", err)
		return false
	}
	return true
}

func (a *Adapter) SaveGifts(ctx context.Context, gifts []core.Gift) error {
	return a.saveKey(ctx, KeyGifts, gifts)
}

func (a *Adapter) SaveYears(ctx context.Context, years []int) error {
	if years == nil {
		years = []int{}
	}
	return a.saveKey(ctx, KeyYears, years)
}

func (a *Adapter) SaveBudgets(ctx context.Context, budgets map[int]int64) error {
	return a.saveKey(ctx, KeyBudgets, budgets)
}

func (a *Adapter) SaveNames(ctx context.Context, names map[int][]string) error {
	return a.saveKey(ctx, KeyNames, names)
}

func (a *Adapter) saveKey(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := a.store.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.store.Close()
}

// Store exposes the underlying blob store for the raw /api/blobs surface.
func (a *Adapter) Store() BlobStore { return a.store }

// normalizeGifts repairs records coming from storage: a non-positive price
// becomes nil, an unknown status degrades to bought.
func normalizeGifts(gifts []core.Gift) []core.Gift {
	out := make([]core.Gift, len(gifts))
	for i, g := range gifts {
		if g.Price != nil && *g.Price <= 0 {
			g.Price = nil
		}
		if !g.Status.Valid() {
			g.Status = core.StatusBought
		}
		out[i] = g
	}
	return out
}

// cleanNames drops empty years and blank or duplicate names, keeping order.
func cleanNames(in map[int][]string) map[int][]string {
	out := make(map[int][]string, len(in))
	for year, names := range in {
		if year <= 0 {
			continue
		}
		seen := make(map[string]bool, len(names))
		var kept []string
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			kept = append(kept, n)
		}
		if len(kept) > 0 {
			out[year] = kept
		}
	}
	return out
}
