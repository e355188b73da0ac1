package storage

import (
	"context"
	"reflect"
	"testing"

	"darky/internal/core"
)

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore())

	gifts := []core.Gift{
		{ID: "g1", Year: 2025, Name: "Anna", Description: "Kniha", Price: price(450), Status: core.StatusBought},
		{ID: "g2", Year: 2025, Name: "Petr", Description: "Hrnek", Status: core.StatusIdea},
	}
	if err := a.SaveGifts(ctx, gifts); err != nil {
		t.Fatalf("SaveGifts() error = %v", err)
	}
	if err := a.SaveYears(ctx, []int{2027}); err != nil {
		t.Fatalf("SaveYears() error = %v", err)
	}
	if err := a.SaveBudgets(ctx, map[int]int64{2025: 12000}); err != nil {
		t.Fatalf("SaveBudgets() error = %v", err)
	}
	if err := a.SaveNames(ctx, map[int][]string{2025: {"Anna", "Petr"}}); err != nil {
		t.Fatalf("SaveNames() error = %v", err)
	}

	st := a.Load(ctx)
	if !reflect.DeepEqual(st.Gifts, gifts) {
		t.Errorf("Load() gifts = %+v, want %+v", st.Gifts, gifts)
	}
	if !reflect.DeepEqual(st.Years, []int{2027}) {
		t.Errorf("Load() years = %v, want [2027]", st.Years)
	}
	if got := st.Budgets[2025]; got != 12000 {
		t.Errorf("Load() budget for 2025 = %d, want 12000", got)
	}
	if !reflect.DeepEqual(st.Names[2025], []string{"Anna", "Petr"}) {
		t.Errorf("Load() names for 2025 = %v, want [Anna Petr]", st.Names[2025])
	}
}

func TestLoadFallsBackToDemoData(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore())

	st := a.Load(ctx)

	if len(st.Gifts) != len(DemoGifts()) {
		t.Errorf("Load() on empty store returned %d gifts, want %d", len(st.Gifts), len(DemoGifts()))
	}
	if len(st.Budgets) == 0 {
		t.Error("Load() on empty store returned no budgets")
	}
	if len(st.Names) == 0 {
		t.Error("Load() on empty store returned no names")
	}
}

func TestLoadMalformedBlobFallsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Save(ctx, KeyGifts, []byte("{not json")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, KeyBudgets, []byte(`"nope"`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	st := NewAdapter(store).Load(ctx)

	if len(st.Gifts) != len(DemoGifts()) {
		t.Errorf("Load() with malformed gifts returned %d gifts, want demo set of %d", len(st.Gifts), len(DemoGifts()))
	}
	if got := st.Budgets[2025]; got != DemoBudgets()[2025] {
		t.Errorf("Load() with malformed budgets returned %d for 2025, want demo value %d", got, DemoBudgets()[2025])
	}
}

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore())

	if err := a.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	// Simulate a mutation after the seed; a second call must not clobber it.
	custom := []core.Gift{{ID: "mine", Year: 2025, Name: "Anna", Description: "Vlastní", Status: core.StatusIdea}}
	if err := a.SaveGifts(ctx, custom); err != nil {
		t.Fatalf("SaveGifts() error = %v", err)
	}
	if err := a.EnsureDefaults(ctx); err != nil {
		t.Fatalf("EnsureDefaults() second call error = %v", err)
	}

	st := a.Load(ctx)
	if len(st.Gifts) != 1 || st.Gifts[0].ID != "mine" {
		t.Errorf("second EnsureDefaults() overwrote gifts: got %+v", st.Gifts)
	}
}

func TestNormalizeGifts(t *testing.T) {
	in := []core.Gift{
		{ID: "a", Year: 2025, Name: "Anna", Price: price(0), Status: core.StatusBought},
		{ID: "b", Year: 2025, Name: "Petr", Price: price(-50), Status: core.StatusIdea},
		{ID: "c", Year: 2025, Name: "Eva", Price: price(900), Status: "weird"},
	}

	out := normalizeGifts(in)

	if out[0].Price != nil {
		t.Errorf("zero price not cleared: %v", *out[0].Price)
	}
	if out[1].Price != nil {
		t.Errorf("negative price not cleared: %v", *out[1].Price)
	}
	if out[2].Status != core.StatusBought {
		t.Errorf("unknown status = %q, want %q", out[2].Status, core.StatusBought)
	}
	if out[2].Price == nil || *out[2].Price != 900 {
		t.Errorf("valid price was altered: %v", out[2].Price)
	}
}

func TestCleanNames(t *testing.T) {
	in := map[int][]string{
		2025: {"Anna", "  Petr ", "Anna", "", "  "},
		0:    {"Ghost"},
		2024: {"", "   "},
	}

	out := cleanNames(in)

	if !reflect.DeepEqual(out[2025], []string{"Anna", "Petr"}) {
		t.Errorf("cleanNames 2025 = %v, want [Anna Petr]", out[2025])
	}
	if _, ok := out[0]; ok {
		t.Error("cleanNames kept year 0")
	}
	if _, ok := out[2024]; ok {
		t.Error("cleanNames kept a year with only blank names")
	}
}

func TestNamesFromGifts(t *testing.T) {
	gifts := []core.Gift{
		{ID: "1", Year: 2025, Name: "Anna"},
		{ID: "2", Year: 2025, Name: "Petr"},
		{ID: "3", Year: 2025, Name: "Anna"},
		{ID: "4", Year: 2024, Name: "Eva"},
		{ID: "5", Year: 0, Name: "Nikdo"},
	}

	out := NamesFromGifts(gifts)

	if !reflect.DeepEqual(out[2025], []string{"Anna", "Petr"}) {
		t.Errorf("NamesFromGifts 2025 = %v, want [Anna Petr]", out[2025])
	}
	if !reflect.DeepEqual(out[2024], []string{"Eva"}) {
		t.Errorf("NamesFromGifts 2024 = %v, want [Eva]", out[2024])
	}
	if _, ok := out[0]; ok {
		t.Error("NamesFromGifts kept year 0")
	}
}
