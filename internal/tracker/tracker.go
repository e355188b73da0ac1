// Package tracker is the mutation and undo controller: it owns the gift
// collection, the per-year name and budget registries, the editability
// policy and the time-bounded pending records layered over deletions.
package tracker

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"darky/internal/core"
	"darky/internal/storage"
)

// Change actions reported through the event sink.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRestored = "restored"
)

// Persister is what the tracker needs from the persistence adapter. Saves
// are best-effort: failures are logged, never surfaced to the caller.
type Persister interface {
	Load(ctx context.Context) storage.State
	SaveGifts(ctx context.Context, gifts []core.Gift) error
	SaveYears(ctx context.Context, years []int) error
	SaveBudgets(ctx context.Context, budgets map[int]int64) error
	SaveNames(ctx context.Context, names map[int][]string) error
}

// EventSink receives committed gift changes. Implementations must not
// block for long; publishing is fire-and-forget from the tracker's view.
type EventSink interface {
	GiftChanged(ctx context.Context, action string, g core.Gift)
}

// AddGiftInput is an already-parsed add request. Price carries whole
// crowns; nil means the gift is an unpriced idea.
type AddGiftInput struct {
	Year        int
	Name        string
	Description string
	Price       *int64
	Status      core.Status
}

// GiftPatch is a partial update. PriceSet distinguishes "leave the price
// alone" from "set it to nil".
type GiftPatch struct {
	Price    *int64
	PriceSet bool
	Status   *core.Status
}

// Tracker orchestrates all mutations. Every entry point runs to completion
// under one mutex; the only asynchrony are the cancellable expiry timers.
type Tracker struct {
	mu     sync.Mutex
	clock  Clock
	store  Persister
	events EventSink

	gifts      []core.Gift
	extraYears []int
	budgets    map[int]int64
	names      map[int][]string
	unlocked   map[int]bool
	selected   int

	pendingDelete     *PendingDelete
	pendingAdd        *PendingAdd
	pendingNameDelete *PendingNameDelete
	highlighted       string

	deleteTimer, addTimer, nameTimer, highlightTimer Timer
	deleteSeq, addSeq, nameSeq, highlightSeq         uint64
}

type Option func(*Tracker)

// WithClock swaps the wall clock, used by tests to drive undo expiry.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithEvents attaches a change-event sink.
func WithEvents(sink EventSink) Option {
	return func(t *Tracker) { t.events = sink }
}

// New loads persisted state through the adapter and starts on the current
// calendar year.
func New(store Persister, opts ...Option) *Tracker {
	t := &Tracker{
		clock:    SystemClock(),
		store:    store,
		budgets:  make(map[int]int64),
		names:    make(map[int][]string),
		unlocked: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(t)
	}

	st := store.Load(context.Background())
	t.gifts = st.Gifts
	t.extraYears = st.Years
	if st.Budgets != nil {
		t.budgets = st.Budgets
	}
	if st.Names != nil {
		t.names = st.Names
	}
	t.selected = t.clock.Now().Year()
	return t
}

// AddGift validates and appends a new gift, makes its year the active one
// and raises the short-lived added notice and row highlight. On any
// validation failure nothing is mutated.
func (t *Tracker) AddGift(ctx context.Context, in AddGiftInput) (core.Gift, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.yearEditable(in.Year) {
		return core.Gift{}, core.ErrYearLocked
	}
	name := strings.TrimSpace(in.Name)
	if !t.nameRegistered(in.Year, name) {
		return core.Gift{}, core.ErrUnknownName
	}

	g := core.Gift{
		ID:          uuid.NewString(),
		Year:        in.Year,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Status:      in.Status,
	}
	if err := g.Validate(); err != nil {
		return core.Gift{}, err
	}

	t.gifts = append(t.gifts, g)
	t.selected = in.Year
	t.scheduleAddNotice(g)
	t.scheduleHighlight(g.ID)
	t.persistGifts(ctx)
	t.emit(ctx, ActionCreated, g)

	slog.InfoContext(ctx, "Gift added",
		"id", g.ID, "year", g.Year, "name", g.Name, "status", string(g.Status))
	return g, nil
}

// DeleteGift removes a gift and opens its undo window. Unknown ids and
// locked years are benign no-ops. A second delete silently forfeits the
// previous gift's undo option.
func (t *Tracker) DeleteGift(ctx context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(id)
	if idx < 0 || !t.yearEditable(t.gifts[idx].Year) {
		return
	}

	g := t.gifts[idx]
	t.gifts = append(t.gifts[:idx], t.gifts[idx+1:]...)
	t.schedulePendingDelete(g, idx)
	t.persistGifts(ctx)
	t.emit(ctx, ActionDeleted, g)

	slog.InfoContext(ctx, "Gift deleted", "id", g.ID, "year", g.Year, "name", g.Name)
}

// UndoDelete restores the pending-deleted gift, clamped into the current
// collection bounds. A no-op when no window is live or when a gift with
// the same id reappeared in the meantime.
func (t *Tracker) UndoDelete(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pd := t.pendingDelete
	if pd == nil {
		return
	}
	t.clearPendingDelete()
	if t.indexOf(pd.Gift.ID) >= 0 {
		return
	}

	idx := pd.OriginalIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(t.gifts) {
		idx = len(t.gifts)
	}
	t.gifts = append(t.gifts[:idx], append([]core.Gift{pd.Gift}, t.gifts[idx:]...)...)
	t.persistGifts(ctx)
	t.emit(ctx, ActionRestored, pd.Gift)

	slog.InfoContext(ctx, "Gift restored", "id", pd.Gift.ID, "index", idx)
}

// UpdateGift merges a partial update into an existing gift. Unknown ids
// and locked years are no-ops; transitions that would leave a bought gift
// without a valid price are rejected, as is reverting bought to idea.
func (t *Tracker) UpdateGift(ctx context.Context, id string, patch GiftPatch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(id)
	if idx < 0 || !t.yearEditable(t.gifts[idx].Year) {
		return nil
	}
	g := t.gifts[idx]

	status := g.Status
	if patch.Status != nil {
		status = *patch.Status
	}
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	if g.Status == core.StatusBought && status == core.StatusIdea {
		return core.ErrBoughtLocked
	}

	price := g.Price
	if patch.PriceSet {
		price = patch.Price
	}
	if price != nil && *price <= 0 {
		return core.ErrInvalidPrice
	}
	if status == core.StatusBought && !core.ValidPrice(price) {
		return core.ErrMissingPrice
	}

	g.Status = status
	g.Price = price
	t.gifts[idx] = g
	t.persistGifts(ctx)
	t.emit(ctx, ActionUpdated, g)

	slog.InfoContext(ctx, "Gift updated", "id", g.ID, "status", string(g.Status))
	return nil
}

// AddName registers a recipient for a year. Duplicates are matched
// case-insensitively.
func (t *Tracker) AddName(ctx context.Context, year int, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.yearEditable(year) {
		return core.ErrYearLocked
	}
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return core.ErrEmptyName
	}
	for _, existing := range t.names[year] {
		if strings.EqualFold(existing, name) {
			return core.ErrDuplicateName
		}
	}
	t.names[year] = append(t.names[year], name)
	t.persistNames(ctx)
	return nil
}

// RemoveName drops a recipient from a year and, atomically with it, every
// gift recorded for that (year, name) pair. The cascade is captured in a
// pending record so one undo restores name and gifts together.
func (t *Tracker) RemoveName(ctx context.Context, year int, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.yearEditable(year) || !t.nameRegistered(year, name) {
		return
	}

	kept := t.names[year][:0]
	for _, n := range t.names[year] {
		if n != name {
			kept = append(kept, n)
		}
	}
	t.names[year] = append([]string(nil), kept...)

	var cascaded []core.Gift
	remaining := t.gifts[:0]
	for _, g := range t.gifts {
		if g.Year == year && g.Name == name {
			cascaded = append(cascaded, g)
		} else {
			remaining = append(remaining, g)
		}
	}
	t.gifts = append([]core.Gift(nil), remaining...)

	t.schedulePendingNameDelete(name, year, cascaded)
	t.persistNames(ctx)
	t.persistGifts(ctx)
	for _, g := range cascaded {
		t.emit(ctx, ActionDeleted, g)
	}

	slog.InfoContext(ctx, "Name removed with cascade",
		"name", name, "year", year, "cascaded", len(cascaded))
}

// UndoNameDelete restores the pending-removed name (idempotently) and
// re-inserts cascaded gifts whose ids are not already present, guarding
// against double inserts.
func (t *Tracker) UndoNameDelete(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pnd := t.pendingNameDelete
	if pnd == nil {
		return
	}
	t.clearPendingNameDelete()

	if !t.nameRegistered(pnd.Year, pnd.Name) {
		t.names[pnd.Year] = append(t.names[pnd.Year], pnd.Name)
	}
	restored := 0
	for _, g := range pnd.CascadedGifts {
		if t.indexOf(g.ID) >= 0 {
			continue
		}
		t.gifts = append(t.gifts, g)
		t.emit(ctx, ActionRestored, g)
		restored++
	}
	t.persistNames(ctx)
	t.persistGifts(ctx)

	slog.InfoContext(ctx, "Name restored",
		"name", pnd.Name, "year", pnd.Year, "gifts_restored", restored)
}

// SetBudget stores a year's budget ceiling from raw input: blank removes
// the entry, an unparsable or negative value leaves the prior one intact.
func (t *Tracker) SetBudget(ctx context.Context, year int, raw string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.yearEditable(year) {
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		delete(t.budgets, year)
		t.persistBudgets(ctx)
		return
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v < 0 {
		return
	}
	t.budgets[year] = int64(math.Round(v))
	t.persistBudgets(ctx)
}

// AddYear registers the year after the newest known one, seeding its name
// list from the immediately preceding year, and selects it.
func (t *Tracker) AddYear(ctx context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	years := t.availableYears()
	next := t.clock.Now().Year()
	if len(years) > 0 && years[0] >= next {
		next = years[0] + 1
	}

	t.extraYears = append(t.extraYears, next)
	if prev, ok := t.names[next-1]; ok && t.names[next] == nil {
		t.names[next] = append([]string(nil), prev...)
	}
	t.selected = next
	t.persistYears(ctx)
	t.persistNames(ctx)

	slog.InfoContext(ctx, "Year added", "year", next, "seed_names", len(t.names[next]))
	return next
}

// SelectYear switches the active year; unknown years are ignored.
func (t *Tracker) SelectYear(year int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, y := range t.availableYears() {
		if y == year {
			t.selected = year
			return true
		}
	}
	return false
}

// UnlockYear lifts the read-only gate on the immediately preceding
// calendar year for the rest of the session. Older years stay read-only.
func (t *Tracker) UnlockYear(year int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if year != t.clock.Now().Year()-1 {
		return false
	}
	t.unlocked[year] = true
	return true
}

// LockYear re-locks a previously unlocked year.
func (t *Tracker) LockYear(year int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.unlocked, year)
}

// --- reads ---

// Gifts returns a copy of the collection, optionally filtered to one year
// (0 keeps all).
func (t *Tracker) Gifts(year int) []core.Gift {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]core.Gift, 0, len(t.gifts))
	for _, g := range t.gifts {
		if year == 0 || g.Year == year {
			out = append(out, g)
		}
	}
	return out
}

func (t *Tracker) Gift(id string) (core.Gift, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx := t.indexOf(id); idx >= 0 {
		return t.gifts[idx], true
	}
	return core.Gift{}, false
}

// Names lists the registry for a year in display (insertion) order.
func (t *Tracker) Names(year int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names[year]...)
}

func (t *Tracker) Budget(year int) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.budgets[year]
	return b, ok
}

// Years lists every known year, newest first.
func (t *Tracker) Years() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.availableYears()
}

func (t *Tracker) SelectedYear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// CurrentYear reports the clock's calendar year.
func (t *Tracker) CurrentYear() int {
	return t.clock.Now().Year()
}

// IsYearEditable reports the temporal gate: current or future years are
// mutable, the previous year only while unlocked, older years never.
func (t *Tracker) IsYearEditable(year int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.yearEditable(year)
}

func (t *Tracker) PendingDelete() *PendingDelete {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingDelete == nil {
		return nil
	}
	cp := *t.pendingDelete
	return &cp
}

func (t *Tracker) PendingAdd() *PendingAdd {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingAdd == nil {
		return nil
	}
	cp := *t.pendingAdd
	return &cp
}

func (t *Tracker) PendingNameDelete() *PendingNameDelete {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingNameDelete == nil {
		return nil
	}
	cp := *t.pendingNameDelete
	cp.CascadedGifts = append([]core.Gift(nil), t.pendingNameDelete.CascadedGifts...)
	return &cp
}

// HighlightedGift returns the id of the most recently added gift while its
// highlight is still decaying.
func (t *Tracker) HighlightedGift() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highlighted
}

// YearStats computes the aggregation for one year's gifts.
func (t *Tracker) YearStats(year int) core.Stats {
	return core.YearStats(t.Gifts(year))
}

// YearlyTotals builds the cross-year spending trend.
func (t *Tracker) YearlyTotals() []core.YearTotal {
	return core.YearlyTotals(t.Gifts(0))
}

// PersonTotals aggregates per recipient, optionally scoped to one year.
func (t *Tracker) PersonTotals(year int) []core.PersonStat {
	return core.PersonTotals(t.Gifts(year))
}

// Overview bundles the derived views the presentation layer consumes for
// one year. Everything is recomputed on demand, never cached.
type Overview struct {
	Year               int                  `json:"year"`
	Stats              core.Stats           `json:"stats"`
	AverageBoughtPrice *float64             `json:"averageBoughtPrice"`
	SpentTotal         int64                `json:"spentTotal"`
	PlanTotal          int64                `json:"planTotal"`
	Budget             *int64               `json:"budget"`
	BudgetRemaining    *int64               `json:"budgetRemaining"`
	Percents           core.BudgetBreakdown `json:"percents"`
	PreviousYearTotal  *int64               `json:"previousYearTotal"`
	HasPreviousYear    bool                 `json:"hasPreviousYear"`
	Editable           bool                 `json:"editable"`
}

func (t *Tracker) Overview(year int) Overview {
	t.mu.Lock()
	defer t.mu.Unlock()

	var yearGifts []core.Gift
	for _, g := range t.gifts {
		if g.Year == year {
			yearGifts = append(yearGifts, g)
		}
	}
	stats := core.YearStats(yearGifts)

	o := Overview{
		Year:       year,
		Stats:      stats,
		SpentTotal: stats.BoughtTotal,
		PlanTotal:  stats.PlanTotal(),
		Editable:   t.yearEditable(year),
	}
	if avg, ok := stats.AverageBoughtPrice(); ok {
		o.AverageBoughtPrice = &avg
	}
	if b, ok := t.budgets[year]; ok {
		budget := b
		o.Budget = &budget
		remaining := budget - stats.PlanTotal()
		o.BudgetRemaining = &remaining
		o.Percents = core.BudgetPercents(core.BudgetInput{
			Budget:      budget,
			BoughtTotal: stats.BoughtTotal,
			IdeaTotal:   stats.IdeaTotal,
			PlanTotal:   stats.PlanTotal(),
		})
	}
	for _, y := range t.availableYears() {
		if y == year-1 {
			o.HasPreviousYear = true
			prev := core.SpentTotalForYear(t.gifts, year-1)
			o.PreviousYearTotal = &prev
			break
		}
	}
	return o
}

// --- internals, caller holds t.mu ---

func (t *Tracker) indexOf(id string) int {
	for i, g := range t.gifts {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) nameRegistered(year int, name string) bool {
	for _, n := range t.names[year] {
		if n == name {
			return true
		}
	}
	return false
}

func (t *Tracker) yearEditable(year int) bool {
	current := t.clock.Now().Year()
	if year >= current {
		return true
	}
	if year == current-1 {
		return t.unlocked[year]
	}
	return false
}

func (t *Tracker) availableYears() []int {
	set := map[int]bool{t.clock.Now().Year(): true}
	for _, g := range t.gifts {
		set[g.Year] = true
	}
	for y := range t.names {
		set[y] = true
	}
	for _, y := range t.extraYears {
		set[y] = true
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

func (t *Tracker) scheduleAddNotice(g core.Gift) {
	if t.addTimer != nil {
		t.addTimer.Stop()
	}
	t.pendingAdd = &PendingAdd{Gift: g}
	t.addSeq++
	seq := t.addSeq
	t.addTimer = t.clock.AfterFunc(AddNoticeWindow, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.addSeq == seq {
			t.pendingAdd = nil
		}
	})
}

func (t *Tracker) scheduleHighlight(id string) {
	if t.highlightTimer != nil {
		t.highlightTimer.Stop()
	}
	t.highlighted = id
	t.highlightSeq++
	seq := t.highlightSeq
	t.highlightTimer = t.clock.AfterFunc(HighlightDuration, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.highlightSeq == seq {
			t.highlighted = ""
		}
	})
}

func (t *Tracker) schedulePendingDelete(g core.Gift, idx int) {
	if t.deleteTimer != nil {
		t.deleteTimer.Stop()
	}
	t.pendingDelete = &PendingDelete{Gift: g, OriginalIndex: idx}
	t.deleteSeq++
	seq := t.deleteSeq
	t.deleteTimer = t.clock.AfterFunc(DeleteUndoWindow, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.deleteSeq == seq {
			t.pendingDelete = nil
		}
	})
}

func (t *Tracker) clearPendingDelete() {
	if t.deleteTimer != nil {
		t.deleteTimer.Stop()
		t.deleteTimer = nil
	}
	t.deleteSeq++
	t.pendingDelete = nil
}

func (t *Tracker) schedulePendingNameDelete(name string, year int, cascaded []core.Gift) {
	if t.nameTimer != nil {
		t.nameTimer.Stop()
	}
	t.pendingNameDelete = &PendingNameDelete{Name: name, Year: year, CascadedGifts: cascaded}
	t.nameSeq++
	seq := t.nameSeq
	t.nameTimer = t.clock.AfterFunc(NameUndoWindow, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.nameSeq == seq {
			t.pendingNameDelete = nil
		}
	})
}

func (t *Tracker) clearPendingNameDelete() {
	if t.nameTimer != nil {
		t.nameTimer.Stop()
		t.nameTimer = nil
	}
	t.nameSeq++
	t.pendingNameDelete = nil
}

func (t *Tracker) persistGifts(ctx context.Context) {
	if err := t.store.SaveGifts(ctx, append([]core.Gift(nil), t.gifts...)); err != nil {
		slog.WarnContext(ctx, "Failed to persist gifts", "error", err)
	}
}

func (t *Tracker) persistYears(ctx context.Context) {
	if err := t.store.SaveYears(ctx, append([]int(nil), t.extraYears...)); err != nil {
		slog.WarnContext(ctx, "Failed to persist years", "error", err)
	}
}

func (t *Tracker) persistBudgets(ctx context.Context) {
	cp := make(map[int]int64, len(t.budgets))
	for y, b := range t.budgets {
		cp[y] = b
	}
	if err := t.store.SaveBudgets(ctx, cp); err != nil {
		slog.WarnContext(ctx, "Failed to persist budgets", "error", err)
	}
}

func (t *Tracker) persistNames(ctx context.Context) {
	cp := make(map[int][]string, len(t.names))
	for y, ns := range t.names {
		cp[y] = append([]string(nil), ns...)
	}
	if err := t.store.SaveNames(ctx, cp); err != nil {
		slog.WarnContext(ctx, "Failed to persist names", "error", err)
	}
}

func (t *Tracker) emit(ctx context.Context, action string, g core.Gift) {
	if t.events == nil {
		return
	}
	t.events.GiftChanged(ctx, action, g)
}
