package store

import (
	"testing"
	"time"

	"convertbox/pkg/domain"
)

func newUser(username, email string) domain.User {
	now := time.Now().UTC()
	return domain.User{
		ID:           NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStoreCreateUserRejectsDuplicates(t *testing.T) {
	m := NewMemoryStore()
	first := newUser("alice", "alice@example.com")
	if err := m.CreateUser(first); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := m.CreateUser(newUser("alice2", "alice@example.com")); err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey for duplicate email, got %v", err)
	}
	if err := m.CreateUser(newUser("alice", "other@example.com")); err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey for duplicate username, got %v", err)
	}
	got, ok, err := m.GetUserByEmail("alice@example.com")
	if err != nil || !ok {
		t.Fatalf("lookup first user: ok=%v err=%v", ok, err)
	}
	if got.ID != first.ID || got.Username != "alice" {
		t.Fatalf("first user changed after rejected duplicates: %+v", got)
	}
}

func TestMemoryStoreUpdateUser(t *testing.T) {
	m := NewMemoryStore()
	u := newUser("bob", "bob@example.com")
	if err := m.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	username := "bobby"
	updated, ok, err := m.UpdateUser(u.ID, domain.UserPatch{Username: &username})
	if err != nil || !ok {
		t.Fatalf("update user: ok=%v err=%v", ok, err)
	}
	if updated.Username != "bobby" || updated.Email != "bob@example.com" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.UpdatedAt.After(u.UpdatedAt) && !updated.UpdatedAt.Equal(u.UpdatedAt) {
		t.Fatalf("expected UpdatedAt refresh")
	}
	if _, ok, _ := m.GetUserByUsername("bob"); ok {
		t.Fatalf("old username index entry should be gone")
	}
	if _, ok, _ := m.GetUserByUsername("bobby"); !ok {
		t.Fatalf("new username should resolve")
	}

	_, ok, err = m.UpdateUser("missing", domain.UserPatch{Username: &username})
	if err != nil {
		t.Fatalf("update missing user: %v", err)
	}
	if ok {
		t.Fatalf("expected not-found for missing id")
	}
}

func TestMemoryStoreUpdateUserDuplicateEmail(t *testing.T) {
	m := NewMemoryStore()
	a := newUser("carol", "carol@example.com")
	b := newUser("dave", "dave@example.com")
	if err := m.CreateUser(a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := m.CreateUser(b); err != nil {
		t.Fatalf("create b: %v", err)
	}
	email := "carol@example.com"
	if _, _, err := m.UpdateUser(b.ID, domain.UserPatch{Email: &email}); err != ErrDuplicateKey {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, _, _ := m.GetUserByID(b.ID)
	if got.Email != "dave@example.com" {
		t.Fatalf("rejected update must not mutate: %+v", got)
	}
}

func TestMemoryStoreSetPasswordHash(t *testing.T) {
	m := NewMemoryStore()
	u := newUser("erin", "erin@example.com")
	if err := m.CreateUser(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	ok, err := m.SetPasswordHash(u.ID, "newhash")
	if err != nil || !ok {
		t.Fatalf("set password hash: ok=%v err=%v", ok, err)
	}
	got, _, _ := m.GetUserByID(u.ID)
	if got.PasswordHash != "newhash" {
		t.Fatalf("hash not stored")
	}
	ok, err = m.SetPasswordHash("missing", "x")
	if err != nil || ok {
		t.Fatalf("expected not-found, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreListUsageFiltersAndOrder(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.ToolUsageEvent{
		{ID: NewID(), ToolName: "pdf-to-word", Category: "pdf", Success: true, CreatedAt: base},
		{ID: NewID(), ToolName: "merge-pdf", Category: "pdf", Success: true, CreatedAt: base.Add(time.Hour)},
		{ID: NewID(), ToolName: "jpg-to-png", Category: "image", Success: false, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range seed {
		if err := m.CreateUsage(e); err != nil {
			t.Fatalf("create usage: %v", err)
		}
	}

	all, err := m.ListUsage(domain.UsageFilter{})
	if err != nil {
		t.Fatalf("list usage: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ToolName != "jpg-to-png" || all[2].ToolName != "pdf-to-word" {
		t.Fatalf("expected timestamp-descending order, got %v, %v, %v", all[0].ToolName, all[1].ToolName, all[2].ToolName)
	}

	pdf, _ := m.ListUsage(domain.UsageFilter{Category: "pdf"})
	if len(pdf) != 2 {
		t.Fatalf("expected 2 pdf events, got %d", len(pdf))
	}

	named, _ := m.ListUsage(domain.UsageFilter{ToolName: "merge-pdf", Category: "pdf"})
	if len(named) != 1 || named[0].ToolName != "merge-pdf" {
		t.Fatalf("AND composition broken: %+v", named)
	}

	windowed, _ := m.ListUsage(domain.UsageFilter{
		DateFrom: base.Add(30 * time.Minute),
		DateTo:   base.Add(90 * time.Minute),
	})
	if len(windowed) != 1 || windowed[0].ToolName != "merge-pdf" {
		t.Fatalf("date window broken: %+v", windowed)
	}
}

func TestMemoryStoreAdSlotLifecycle(t *testing.T) {
	m := NewMemoryStore()
	slot := domain.AdSlot{
		ID:        NewID(),
		Name:      "Home Header",
		Position:  "header",
		Page:      "home",
		IsActive:  true,
		Settings:  map[string]string{"width": "728"},
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateAdSlot(slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	inactive := domain.AdSlot{ID: NewID(), Name: "Home Footer", Position: "footer", Page: "home", IsActive: false, CreatedAt: time.Now().UTC()}
	otherPage := domain.AdSlot{ID: NewID(), Name: "Tools Top", Position: "tool-top", Page: "tools", IsActive: true, CreatedAt: time.Now().UTC()}
	if err := m.CreateAdSlot(inactive); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if err := m.CreateAdSlot(otherPage); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	active, err := m.ListActiveAdSlots("home")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != slot.ID {
		t.Fatalf("expected only the active home slot, got %+v", active)
	}

	off := false
	updated, ok, err := m.UpdateAdSlot(slot.ID, domain.AdSlotPatch{IsActive: &off})
	if err != nil || !ok || updated.IsActive {
		t.Fatalf("deactivate failed: ok=%v err=%v slot=%+v", ok, err, updated)
	}
	active, _ = m.ListActiveAdSlots("home")
	if len(active) != 0 {
		t.Fatalf("deactivated slot still listed")
	}

	deleted, err := m.DeleteAdSlot(slot.ID)
	if err != nil || !deleted {
		t.Fatalf("first delete should succeed: deleted=%v err=%v", deleted, err)
	}
	deleted, err = m.DeleteAdSlot(slot.ID)
	if err != nil || deleted {
		t.Fatalf("second delete should report false: deleted=%v err=%v", deleted, err)
	}
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	m := NewMemoryStore()
	slot := domain.AdSlot{
		ID:        NewID(),
		Name:      "Sidebar",
		Position:  "sidebar",
		Page:      "home",
		IsActive:  true,
		Settings:  map[string]string{"width": "300"},
		CreatedAt: time.Now().UTC(),
	}
	if err := m.CreateAdSlot(slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	got, _, _ := m.GetAdSlot(slot.ID)
	got.Settings["width"] = "999"
	again, _, _ := m.GetAdSlot(slot.ID)
	if again.Settings["width"] != "300" {
		t.Fatalf("stored settings mutated through returned copy")
	}
}
