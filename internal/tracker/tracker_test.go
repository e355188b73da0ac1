package tracker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"darky/internal/core"
	"darky/internal/storage"
)

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

func (ft *fakeTimer) Stop() bool {
	if ft.stopped {
		return false
	}
	ft.stopped = true
	return true
}

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	ft := &fakeTimer{deadline: fc.now.Add(d), fn: fn}
	fc.timers = append(fc.timers, ft)
	return ft
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	var due []*fakeTimer
	for _, ft := range fc.timers {
		if !ft.stopped && !ft.deadline.After(fc.now) {
			ft.stopped = true
			due = append(due, ft)
		}
	}
	fc.mu.Unlock()
	for _, ft := range due {
		ft.fn()
	}
}

type fakePersister struct {
	state     storage.State
	giftSaves int
}

func (fp *fakePersister) Load(_ context.Context) storage.State { return fp.state }

func (fp *fakePersister) SaveGifts(_ context.Context, gifts []core.Gift) error {
	fp.state.Gifts = gifts
	fp.giftSaves++
	return nil
}

func (fp *fakePersister) SaveYears(_ context.Context, years []int) error {
	fp.state.Years = years
	return nil
}

func (fp *fakePersister) SaveBudgets(_ context.Context, budgets map[int]int64) error {
	fp.state.Budgets = budgets
	return nil
}

func (fp *fakePersister) SaveNames(_ context.Context, names map[int][]string) error {
	fp.state.Names = names
	return nil
}

type recordedEvent struct {
	action string
	gift   core.Gift
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (fs *fakeSink) GiftChanged(_ context.Context, action string, g core.Gift) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.events = append(fs.events, recordedEvent{action: action, gift: g})
}

func (fs *fakeSink) actions() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, len(fs.events))
	for i, e := range fs.events {
		out[i] = e.action
	}
	return out
}

func newTestTracker(t *testing.T) (*Tracker, *fakeClock, *fakePersister, *fakeSink) {
	t.Helper()
	clock := newFakeClock(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))
	store := &fakePersister{
		state: storage.State{
			Names: map[int][]string{
				2025: {"Anna", "Petr"},
				2024: {"Anna", "Petr"},
				2023: {"Anna"},
			},
		},
	}
	sink := &fakeSink{}
	tr := New(store, WithClock(clock), WithEvents(sink))
	return tr, clock, store, sink
}

func mustAdd(t *testing.T, tr *Tracker, in AddGiftInput) core.Gift {
	t.Helper()
	g, err := tr.AddGift(context.Background(), in)
	if err != nil {
		t.Fatalf("AddGift(%+v) failed: %v", in, err)
	}
	return g
}

func TestAddGiftValidation(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      AddGiftInput
		wantErr error
	}{
		{
			name:    "unregistered name",
			in:      AddGiftInput{Year: 2025, Name: "Karel", Description: "kniha", Status: core.StatusIdea},
			wantErr: core.ErrUnknownName,
		},
		{
			name:    "locked year",
			in:      AddGiftInput{Year: 2023, Name: "Anna", Description: "kniha", Status: core.StatusIdea},
			wantErr: core.ErrYearLocked,
		},
		{
			name:    "short description",
			in:      AddGiftInput{Year: 2025, Name: "Anna", Description: "k", Status: core.StatusIdea},
			wantErr: core.ErrEmptyDescription,
		},
		{
			name:    "bought without price",
			in:      AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusBought},
			wantErr: core.ErrMissingPrice,
		},
		{
			name:    "negative price",
			in:      AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Price: core.PriceOf(-5), Status: core.StatusIdea},
			wantErr: core.ErrInvalidPrice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tr.AddGift(ctx, tt.in); err != tt.wantErr {
				t.Fatalf("AddGift error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := len(tr.Gifts(0)); got != 0 {
		t.Fatalf("rejected adds mutated the collection: %d gifts", got)
	}
}

func TestAddGiftSelectsYearAndHighlights(t *testing.T) {
	tr, clock, _, sink := newTestTracker(t)
	if err := tr.AddName(context.Background(), 2026, "Anna"); err != nil {
		t.Fatalf("AddName: %v", err)
	}

	g := mustAdd(t, tr, AddGiftInput{Year: 2026, Name: "Anna", Description: "kniha", Status: core.StatusIdea})

	if tr.SelectedYear() != 2026 {
		t.Fatalf("selected year = %d, want 2026", tr.SelectedYear())
	}
	if tr.HighlightedGift() != g.ID {
		t.Fatalf("highlighted = %q, want %q", tr.HighlightedGift(), g.ID)
	}
	if pa := tr.PendingAdd(); pa == nil || pa.Gift.ID != g.ID {
		t.Fatalf("pending add record missing")
	}

	clock.Advance(HighlightDuration)
	if tr.HighlightedGift() != "" {
		t.Fatal("highlight survived its window")
	}
	if tr.PendingAdd() == nil {
		t.Fatal("add notice expired early")
	}

	clock.Advance(AddNoticeWindow - HighlightDuration)
	if tr.PendingAdd() != nil {
		t.Fatal("add notice survived its window")
	}

	if got := sink.actions(); len(got) != 1 || got[0] != ActionCreated {
		t.Fatalf("events = %v, want [created]", got)
	}
}

func TestDeleteUndoRestoresAtOriginalIndex(t *testing.T) {
	tr, _, _, sink := newTestTracker(t)
	ctx := context.Background()

	a := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	b := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Petr", Description: "hrnek", Status: core.StatusIdea})
	c := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "svetr", Status: core.StatusIdea})

	tr.DeleteGift(ctx, b.ID)
	if _, ok := tr.Gift(b.ID); ok {
		t.Fatal("gift still present after delete")
	}
	pd := tr.PendingDelete()
	if pd == nil || pd.Gift.ID != b.ID || pd.OriginalIndex != 1 {
		t.Fatalf("pending delete = %+v", pd)
	}

	tr.UndoDelete(ctx)
	gifts := tr.Gifts(2025)
	wantOrder := []string{a.ID, b.ID, c.ID}
	for i, want := range wantOrder {
		if gifts[i].ID != want {
			t.Fatalf("position %d = %s, want %s", i, gifts[i].ID, want)
		}
	}
	if tr.PendingDelete() != nil {
		t.Fatal("pending delete survived the undo")
	}

	got := sink.actions()
	want := []string{ActionCreated, ActionCreated, ActionCreated, ActionDeleted, ActionRestored}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUndoAfterWindowIsNoop(t *testing.T) {
	tr, clock, _, _ := newTestTracker(t)
	ctx := context.Background()

	g := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	tr.DeleteGift(ctx, g.ID)

	clock.Advance(DeleteUndoWindow)
	if tr.PendingDelete() != nil {
		t.Fatal("pending delete survived its window")
	}
	tr.UndoDelete(ctx)
	if len(tr.Gifts(0)) != 0 {
		t.Fatal("expired undo restored the gift")
	}
}

func TestSecondDeleteSupersedesFirst(t *testing.T) {
	tr, clock, _, _ := newTestTracker(t)
	ctx := context.Background()

	a := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	b := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Petr", Description: "hrnek", Status: core.StatusIdea})

	tr.DeleteGift(ctx, a.ID)
	clock.Advance(3 * time.Second)
	tr.DeleteGift(ctx, b.ID)

	// The first window would have expired here; the second must not.
	clock.Advance(3 * time.Second)
	pd := tr.PendingDelete()
	if pd == nil || pd.Gift.ID != b.ID {
		t.Fatalf("pending delete = %+v, want gift %s", pd, b.ID)
	}

	tr.UndoDelete(ctx)
	if _, ok := tr.Gift(a.ID); ok {
		t.Fatal("superseded gift came back")
	}
	if _, ok := tr.Gift(b.ID); !ok {
		t.Fatal("second gift not restored")
	}
}

func TestDeleteBenignNoops(t *testing.T) {
	tr, _, store, _ := newTestTracker(t)
	ctx := context.Background()

	saves := store.giftSaves
	tr.DeleteGift(ctx, "no-such-id")
	if store.giftSaves != saves {
		t.Fatal("no-op delete persisted")
	}
	if tr.PendingDelete() != nil {
		t.Fatal("no-op delete opened an undo window")
	}
}

func TestUpdateGiftTransitions(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	idea := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	bought := core.StatusBought
	ideaStatus := core.StatusIdea

	if err := tr.UpdateGift(ctx, idea.ID, GiftPatch{Status: &bought}); err != core.ErrMissingPrice {
		t.Fatalf("bought without price: err = %v, want %v", err, core.ErrMissingPrice)
	}

	if err := tr.UpdateGift(ctx, idea.ID, GiftPatch{Status: &bought, Price: core.PriceOf(450), PriceSet: true}); err != nil {
		t.Fatalf("marking bought failed: %v", err)
	}
	g, _ := tr.Gift(idea.ID)
	if g.Status != core.StatusBought || g.Price == nil || *g.Price != 450 {
		t.Fatalf("after update: %+v", g)
	}

	if err := tr.UpdateGift(ctx, idea.ID, GiftPatch{Status: &ideaStatus}); err != core.ErrBoughtLocked {
		t.Fatalf("reverting bought: err = %v, want %v", err, core.ErrBoughtLocked)
	}

	if err := tr.UpdateGift(ctx, idea.ID, GiftPatch{Price: nil, PriceSet: true}); err != core.ErrMissingPrice {
		t.Fatalf("clearing bought price: err = %v, want %v", err, core.ErrMissingPrice)
	}

	if err := tr.UpdateGift(ctx, "missing", GiftPatch{Status: &bought}); err != nil {
		t.Fatalf("unknown id should be a no-op, got %v", err)
	}
}

func TestNameCascadeAndUndo(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	g1 := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	g2 := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "svetr", Price: core.PriceOf(800), Status: core.StatusBought})
	keep := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Petr", Description: "hrnek", Status: core.StatusIdea})

	tr.RemoveName(ctx, 2025, "Anna")

	if names := tr.Names(2025); len(names) != 1 || names[0] != "Petr" {
		t.Fatalf("names after removal = %v", names)
	}
	if got := len(tr.Gifts(2025)); got != 1 {
		t.Fatalf("gifts after cascade = %d, want 1", got)
	}
	pnd := tr.PendingNameDelete()
	if pnd == nil || pnd.Name != "Anna" || len(pnd.CascadedGifts) != 2 {
		t.Fatalf("pending name delete = %+v", pnd)
	}

	tr.UndoNameDelete(ctx)

	names := tr.Names(2025)
	sort.Strings(names)
	if len(names) != 2 || names[0] != "Anna" || names[1] != "Petr" {
		t.Fatalf("names after undo = %v", names)
	}
	for _, id := range []string{g1.ID, g2.ID, keep.ID} {
		if _, ok := tr.Gift(id); !ok {
			t.Fatalf("gift %s missing after undo", id)
		}
	}
	if tr.PendingNameDelete() != nil {
		t.Fatal("pending record survived the undo")
	}
}

func TestAddNameRules(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	if err := tr.AddName(ctx, 2025, "  anna "); err != core.ErrDuplicateName {
		t.Fatalf("case-insensitive duplicate: err = %v, want %v", err, core.ErrDuplicateName)
	}
	if err := tr.AddName(ctx, 2025, "X"); err != core.ErrEmptyName {
		t.Fatalf("one-char name: err = %v, want %v", err, core.ErrEmptyName)
	}
	if err := tr.AddName(ctx, 2023, "Karel"); err != core.ErrYearLocked {
		t.Fatalf("locked year: err = %v, want %v", err, core.ErrYearLocked)
	}
	if err := tr.AddName(ctx, 2025, "Karel"); err != nil {
		t.Fatalf("valid add failed: %v", err)
	}
	names := tr.Names(2025)
	if names[len(names)-1] != "Karel" {
		t.Fatalf("names = %v, want Karel appended", names)
	}
}

func TestUnlockPreviousYear(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	if tr.IsYearEditable(2024) {
		t.Fatal("previous year editable before unlock")
	}
	if tr.UnlockYear(2023) {
		t.Fatal("unlocked a year older than the previous one")
	}
	if !tr.UnlockYear(2024) {
		t.Fatal("could not unlock the previous year")
	}
	if !tr.IsYearEditable(2024) {
		t.Fatal("previous year still locked after unlock")
	}
	if _, err := tr.AddGift(ctx, AddGiftInput{Year: 2024, Name: "Anna", Description: "kniha", Status: core.StatusIdea}); err != nil {
		t.Fatalf("add into unlocked year failed: %v", err)
	}

	tr.LockYear(2024)
	if tr.IsYearEditable(2024) {
		t.Fatal("year editable after re-lock")
	}
}

func TestSetBudget(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	tr.SetBudget(ctx, 2025, "15000")
	if b, ok := tr.Budget(2025); !ok || b != 15000 {
		t.Fatalf("budget = %d/%v, want 15000", b, ok)
	}

	tr.SetBudget(ctx, 2025, "abc")
	if b, _ := tr.Budget(2025); b != 15000 {
		t.Fatalf("invalid input changed budget to %d", b)
	}

	tr.SetBudget(ctx, 2025, "-1")
	if b, _ := tr.Budget(2025); b != 15000 {
		t.Fatalf("negative input changed budget to %d", b)
	}

	tr.SetBudget(ctx, 2025, "")
	if _, ok := tr.Budget(2025); ok {
		t.Fatal("blank input did not clear the budget")
	}

	tr.SetBudget(ctx, 2023, "9000")
	if _, ok := tr.Budget(2023); ok {
		t.Fatal("budget set on a locked year")
	}
}

func TestAddYearSeedsNames(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	got := tr.AddYear(ctx)
	if got != 2026 {
		t.Fatalf("AddYear = %d, want 2026", got)
	}
	if tr.SelectedYear() != 2026 {
		t.Fatalf("selected = %d, want 2026", tr.SelectedYear())
	}
	names := tr.Names(2026)
	if len(names) != 2 || names[0] != "Anna" || names[1] != "Petr" {
		t.Fatalf("seeded names = %v", names)
	}

	if next := tr.AddYear(ctx); next != 2027 {
		t.Fatalf("second AddYear = %d, want 2027", next)
	}
}

func TestYearsSortedDescending(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)

	years := tr.Years()
	for i := 1; i < len(years); i++ {
		if years[i-1] <= years[i] {
			t.Fatalf("years not descending: %v", years)
		}
	}
	if years[0] != 2025 {
		t.Fatalf("newest year = %d, want 2025", years[0])
	}
}

func TestSelectYear(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)

	if !tr.SelectYear(2024) {
		t.Fatal("could not select a known year")
	}
	if tr.SelectedYear() != 2024 {
		t.Fatalf("selected = %d", tr.SelectedYear())
	}
	if tr.SelectYear(1999) {
		t.Fatal("selected an unknown year")
	}
	if tr.SelectedYear() != 2024 {
		t.Fatal("failed select changed the active year")
	}
}

func TestOverview(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()

	mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Price: core.PriceOf(600), Status: core.StatusBought})
	mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Petr", Description: "hrnek", Price: core.PriceOf(600), Status: core.StatusIdea})
	tr.SetBudget(ctx, 2025, "1000")

	o := tr.Overview(2025)
	if o.SpentTotal != 600 || o.PlanTotal != 1200 {
		t.Fatalf("totals: spent=%d plan=%d", o.SpentTotal, o.PlanTotal)
	}
	if o.Budget == nil || *o.Budget != 1000 {
		t.Fatalf("budget = %v", o.Budget)
	}
	if o.BudgetRemaining == nil || *o.BudgetRemaining != -200 {
		t.Fatalf("remaining = %v", o.BudgetRemaining)
	}
	if o.Percents.Over <= 0 {
		t.Fatalf("over-budget share = %v, want positive", o.Percents.Over)
	}
	if !o.Editable {
		t.Fatal("current year reported read-only")
	}
	if o.HasPreviousYear != true {
		t.Fatal("2024 should count as a previous year")
	}

	empty := tr.Overview(2030)
	if empty.AverageBoughtPrice != nil {
		t.Fatal("average present with no bought gifts")
	}
	if empty.Budget != nil {
		t.Fatal("budget present for a year without one")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := newFakeClock(time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC))
	store := &fakePersister{
		state: storage.State{Names: map[int][]string{2025: {"Anna"}}},
	}
	tr := New(store, WithClock(clock))
	ctx := context.Background()

	g := mustAdd(t, tr, AddGiftInput{Year: 2025, Name: "Anna", Description: "kniha", Price: core.PriceOf(300), Status: core.StatusBought})
	tr.SetBudget(ctx, 2025, "5000")

	// A second tracker over the same persister sees the committed state.
	tr2 := New(store, WithClock(clock))
	if _, ok := tr2.Gift(g.ID); !ok {
		t.Fatal("gift not visible after reload")
	}
	if b, ok := tr2.Budget(2025); !ok || b != 5000 {
		t.Fatalf("budget after reload = %d/%v", b, ok)
	}
}
