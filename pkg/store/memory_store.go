package store

import (
	"sort"
	"sync"
	"time"

	"convertbox/pkg/domain"
)

// MemoryStore keeps all collections in-process. It implements the same
// contract as GormStore so tests and single-node deployments can run without
// Postgres. Records are copied on read so callers cannot mutate stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	userOrder []string
	emails    map[string]string // email -> user ID
	usernames map[string]string // username -> user ID
	usage     []domain.ToolUsageEvent
	slots     map[string]domain.AdSlot
	slotOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		emails:    make(map[string]string),
		usernames: make(map[string]string),
		slots:     make(map[string]domain.AdSlot),
	}
}

// CreateUser stores a new user, rejecting duplicate email or username.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.emails[u.Email]; taken {
		return ErrDuplicateKey
	}
	if _, taken := m.usernames[u.Username]; taken {
		return ErrDuplicateKey
	}
	m.users[u.ID] = u
	m.userOrder = append(m.userOrder, u.ID)
	m.emails[u.Email] = u.ID
	m.usernames[u.Username] = u.ID
	return nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.emails[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.usernames[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// UpdateUser merges the patch over the stored record and refreshes UpdatedAt.
// Email and username uniqueness holds across updates too.
func (m *MemoryStore) UpdateUser(id string, patch domain.UserPatch) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, false, nil
	}
	if patch.Email != nil && *patch.Email != u.Email {
		if owner, taken := m.emails[*patch.Email]; taken && owner != id {
			return domain.User{}, false, ErrDuplicateKey
		}
	}
	if patch.Username != nil && *patch.Username != u.Username {
		if owner, taken := m.usernames[*patch.Username]; taken && owner != id {
			return domain.User{}, false, ErrDuplicateKey
		}
	}
	if patch.Email != nil && *patch.Email != u.Email {
		delete(m.emails, u.Email)
		u.Email = *patch.Email
		m.emails[u.Email] = id
	}
	if patch.Username != nil && *patch.Username != u.Username {
		delete(m.usernames, u.Username)
		u.Username = *patch.Username
		m.usernames[u.Username] = id
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, true, nil
}

// SetPasswordHash replaces the stored password hash.
func (m *MemoryStore) SetPasswordHash(id, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return true, nil
}

// ListUsers returns all users in insertion order.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CreateUsage appends an immutable usage event.
func (m *MemoryStore) CreateUsage(e domain.ToolUsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, copyUsage(e))
	return nil
}

// ListUsage returns matching events ordered by timestamp descending.
func (m *MemoryStore) ListUsage(filter domain.UsageFilter) ([]domain.ToolUsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ToolUsageEvent, 0, len(m.usage))
	for _, e := range m.usage {
		if filter.ToolName != "" && e.ToolName != filter.ToolName {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if !filter.DateFrom.IsZero() && e.CreatedAt.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && e.CreatedAt.After(filter.DateTo) {
			continue
		}
		res = append(res, copyUsage(e))
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// CreateAdSlot stores a new ad slot and tracks insertion order.
func (m *MemoryStore) CreateAdSlot(s domain.AdSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = copySlot(s)
	m.slotOrder = append(m.slotOrder, s.ID)
	return nil
}

// GetAdSlot retrieves an ad slot by ID.
func (m *MemoryStore) GetAdSlot(id string) (domain.AdSlot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return domain.AdSlot{}, false, nil
	}
	return copySlot(s), true, nil
}

// ListAdSlots returns all ad slots in insertion order.
func (m *MemoryStore) ListAdSlots() ([]domain.AdSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.AdSlot, 0, len(m.slotOrder))
	for _, id := range m.slotOrder {
		if s, ok := m.slots[id]; ok {
			res = append(res, copySlot(s))
		}
	}
	return res, nil
}

// ListActiveAdSlots returns active slots for the given page.
func (m *MemoryStore) ListActiveAdSlots(page string) ([]domain.AdSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.AdSlot, 0, len(m.slotOrder))
	for _, id := range m.slotOrder {
		if s, ok := m.slots[id]; ok && s.IsActive && s.Page == page {
			res = append(res, copySlot(s))
		}
	}
	return res, nil
}

// UpdateAdSlot merges the patch over the stored slot.
func (m *MemoryStore) UpdateAdSlot(id string, patch domain.AdSlotPatch) (domain.AdSlot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return domain.AdSlot{}, false, nil
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Position != nil {
		s.Position = *patch.Position
	}
	if patch.Page != nil {
		s.Page = *patch.Page
	}
	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}
	if patch.AdProvider != nil {
		s.AdProvider = *patch.AdProvider
	}
	if patch.AdCode != nil {
		s.AdCode = *patch.AdCode
	}
	if patch.Settings != nil {
		s.Settings = copyMap(patch.Settings)
	}
	m.slots[id] = s
	return copySlot(s), true, nil
}

// DeleteAdSlot removes a slot. The second delete of the same ID reports false.
func (m *MemoryStore) DeleteAdSlot(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return false, nil
	}
	delete(m.slots, id)
	filtered := m.slotOrder[:0]
	for _, item := range m.slotOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.slotOrder = filtered
	return true, nil
}

// AdSlotCount returns number of ad slots.
func (m *MemoryStore) AdSlotCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots), nil
}

func copyUsage(e domain.ToolUsageEvent) domain.ToolUsageEvent {
	out := e
	if e.ProcessingTimeMs != nil {
		v := *e.ProcessingTimeMs
		out.ProcessingTimeMs = &v
	}
	if e.FileSizeBytes != nil {
		v := *e.FileSizeBytes
		out.FileSizeBytes = &v
	}
	return out
}

func copySlot(s domain.AdSlot) domain.AdSlot {
	out := s
	out.Settings = copyMap(s.Settings)
	return out
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
