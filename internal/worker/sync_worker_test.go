package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"darky/internal/core"
	"darky/internal/event"
	"darky/internal/storage"
)

// fakeMirror is locked because reconcile pushes concurrently.
type fakeMirror struct {
	mu      sync.Mutex
	remote  []core.Gift
	created []core.Gift
	updated []core.Gift
	deleted []string
	failAll bool
}

func (m *fakeMirror) Gifts(_ context.Context, _ int) ([]core.Gift, error) {
	if m.failAll {
		return nil, errors.New("connection refused")
	}
	return m.remote, nil
}

func (m *fakeMirror) CreateGift(_ context.Context, g core.Gift) error {
	if m.failAll {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, g)
	return nil
}

func (m *fakeMirror) UpdateGift(_ context.Context, g core.Gift) error {
	if m.failAll {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, g)
	return nil
}

func (m *fakeMirror) DeleteGift(_ context.Context, id string) error {
	if m.failAll {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *fakeMirror) createdIDs() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.created))
	for _, g := range m.created {
		out[g.ID] = true
	}
	return out
}

type fakeLoader struct {
	state storage.State
}

func (l *fakeLoader) Load(_ context.Context) storage.State { return l.state }

func TestHandleGiftEvent(t *testing.T) {
	g := core.Gift{ID: "g1", Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea}

	tests := []struct {
		action      string
		wantCreated int
		wantUpdated int
		wantDeleted int
	}{
		{action: "created", wantCreated: 1},
		{action: "restored", wantCreated: 1},
		{action: "updated", wantUpdated: 1},
		{action: "deleted", wantDeleted: 1},
		{action: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			mirror := &fakeMirror{}
			w := NewSyncWorker(mirror, nil, 10)

			if err := w.HandleGiftEvent(context.Background(), event.NewGiftEvent(tt.action, g)); err != nil {
				t.Fatalf("HandleGiftEvent() error = %v", err)
			}
			if len(mirror.created) != tt.wantCreated {
				t.Errorf("created = %d, want %d", len(mirror.created), tt.wantCreated)
			}
			if len(mirror.updated) != tt.wantUpdated {
				t.Errorf("updated = %d, want %d", len(mirror.updated), tt.wantUpdated)
			}
			if len(mirror.deleted) != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", len(mirror.deleted), tt.wantDeleted)
			}
		})
	}
}

func TestHandleGiftEvent_MirrorFailure(t *testing.T) {
	mirror := &fakeMirror{failAll: true}
	w := NewSyncWorker(mirror, nil, 10)

	e := event.NewGiftEvent("created", core.Gift{ID: "g1", Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	if err := w.HandleGiftEvent(context.Background(), e); err == nil {
		t.Fatal("HandleGiftEvent() should surface mirror errors so the event is requeued")
	}
}

func TestReconcile(t *testing.T) {
	onRemote := core.Gift{ID: "known", Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea}
	missing1 := core.Gift{ID: "m1", Year: 2025, Name: "Petr", Description: "hrnek", Status: core.StatusIdea}
	missing2 := core.Gift{ID: "m2", Year: 2024, Name: "Anna", Description: "svetr", Price: core.PriceOf(900), Status: core.StatusBought}

	mirror := &fakeMirror{remote: []core.Gift{onRemote}}
	loader := &fakeLoader{state: storage.State{Gifts: []core.Gift{onRemote, missing1, missing2}}}
	w := NewSyncWorker(mirror, loader, 10)

	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	pushed := mirror.createdIDs()
	if len(pushed) != 2 {
		t.Fatalf("pushed %d gifts, want 2", len(pushed))
	}
	if !pushed["m1"] || !pushed["m2"] {
		t.Fatalf("pushed %v", pushed)
	}
	if len(mirror.deleted) != 0 {
		t.Fatal("reconcile must never delete on the peer")
	}
}

func TestReconcileRespectsBatchSize(t *testing.T) {
	var local []core.Gift
	for _, id := range []string{"a", "b", "c", "d"} {
		local = append(local, core.Gift{ID: id, Year: 2025, Name: "Anna", Description: "kniha", Status: core.StatusIdea})
	}

	mirror := &fakeMirror{}
	w := NewSyncWorker(mirror, &fakeLoader{state: storage.State{Gifts: local}}, 2)

	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mirror.created) != 2 {
		t.Fatalf("pushed %d gifts, want batch limit 2", len(mirror.created))
	}
}

func TestReconcileWithoutLoader(t *testing.T) {
	w := NewSyncWorker(&fakeMirror{}, nil, 10)
	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() without loader should be a no-op, got %v", err)
	}
}
