package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
)

// MemoryStore keeps users, tenants and refresh tokens in process memory.
// It enforces the same constraints as the MySQL schema (unique email,
// tenant foreign key, token cascade) and returns the same sentinel errors,
// so it backs local runs with STORE=memory and the handler tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[uint64]model.User
	tenants map[uint64]model.Tenant
	tokens  map[uint64]model.RefreshToken
	seq     struct{ user, tenant, token uint64 }
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[uint64]model.User{},
		tenants: map[uint64]model.Tenant{},
		tokens:  map[uint64]model.RefreshToken{},
	}
}

func (s *MemoryStore) Users() *MemoryUserRepo     { return &MemoryUserRepo{s} }
func (s *MemoryStore) Tenants() *MemoryTenantRepo { return &MemoryTenantRepo{s} }
func (s *MemoryStore) Tokens() *MemoryTokenRepo   { return &MemoryTokenRepo{s} }

type memTxKey struct{}

func (s *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryStore)
	return owner == s
}

func (s *MemoryStore) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) rlock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

type memSnapshot struct {
	users   map[uint64]model.User
	tenants map[uint64]model.Tenant
	tokens  map[uint64]model.RefreshToken
	seq     struct{ user, tenant, token uint64 }
}

func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		users:   make(map[uint64]model.User, len(s.users)),
		tenants: make(map[uint64]model.Tenant, len(s.tenants)),
		tokens:  make(map[uint64]model.RefreshToken, len(s.tokens)),
		seq:     s.seq,
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.tenants {
		snap.tenants[k] = v
	}
	for k, v := range s.tokens {
		snap.tokens[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.users, s.tenants, s.tokens, s.seq = snap.users, snap.tenants, snap.tokens, snap.seq
}

// RunInTx holds the store's write lock for the duration of fn and restores
// the previous state when fn fails or panics.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		} else if err != nil {
			s.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, memTxKey{}, s))
}

func memNow() time.Time { return time.Now().UTC().Truncate(time.Second) }

func paginate[T any](items []T, p model.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start < 0 || start > len(items) {
		start = len(items)
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// MemoryUserRepo is the in-memory counterpart of UserRepo.
type MemoryUserRepo struct{ s *MemoryStore }

// withTenant attaches the tenant row the way the SQL join does.
func (r *MemoryUserRepo) withTenant(u model.User) model.User {
	u.Tenant = nil
	if u.TenantID != nil {
		if t, ok := r.s.tenants[*u.TenantID]; ok {
			u.Tenant = &t
		}
	}
	return u
}

func (r *MemoryUserRepo) emailTaken(email string, except uint64) bool {
	for id, u := range r.s.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepo) Create(ctx context.Context, u *model.User) error {
	defer r.s.lock(ctx)()

	if r.emailTaken(u.Email, 0) {
		return ErrEmailExists
	}
	if u.TenantID != nil {
		if _, ok := r.s.tenants[*u.TenantID]; !ok {
			return ErrTenantNotFound
		}
	}
	r.s.seq.user++
	now := memNow()
	u.ID = r.s.seq.user
	u.CreatedAt, u.UpdatedAt = now, now

	stored := *u
	stored.Tenant = nil
	if u.TenantID != nil {
		id := *u.TenantID
		stored.TenantID = &id
	}
	r.s.users[u.ID] = stored
	return nil
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	defer r.s.rlock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return r.withTenant(u), nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	defer r.s.rlock(ctx)()

	email = model.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return r.withTenant(u), nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (r *MemoryUserRepo) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	defer r.s.rlock(ctx)()

	q := strings.ToLower(strings.TrimSpace(f.Q))
	all := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), q) &&
			!strings.Contains(strings.ToLower(u.LastName), q) &&
			!strings.Contains(u.Email, q) {
			continue
		}
		all = append(all, r.withTenant(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, f.Page), len(all), nil
}

func (r *MemoryUserRepo) Update(ctx context.Context, id uint64, p model.UserPatch) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if p.Empty() {
		return nil
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		email := model.NormalizeEmail(*p.Email)
		if r.emailTaken(email, id) {
			return ErrEmailExists
		}
		u.Email = email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.ClearTenant {
		u.TenantID = nil
	} else if p.TenantID != nil {
		if _, ok := r.s.tenants[*p.TenantID]; !ok {
			return ErrTenantNotFound
		}
		tid := *p.TenantID
		u.TenantID = &tid
	}
	u.UpdatedAt = memNow()
	r.s.users[id] = u
	return nil
}

// Delete removes the user and every refresh token it owns.
func (r *MemoryUserRepo) Delete(ctx context.Context, id uint64) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.s.users, id)
	for tid, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, tid)
		}
	}
	return nil
}

// MemoryTenantRepo is the in-memory counterpart of TenantRepo.
type MemoryTenantRepo struct{ s *MemoryStore }

func (r *MemoryTenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	defer r.s.lock(ctx)()

	r.s.seq.tenant++
	now := memNow()
	t.ID = r.s.seq.tenant
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tenants[t.ID] = *t
	return nil
}

func (r *MemoryTenantRepo) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
	defer r.s.rlock(ctx)()

	t, ok := r.s.tenants[id]
	if !ok {
		return model.Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (r *MemoryTenantRepo) List(ctx context.Context, f model.TenantFilter) ([]model.Tenant, int, error) {
	defer r.s.rlock(ctx)()

	q := strings.ToLower(strings.TrimSpace(f.Q))
	all := make([]model.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Name), q) &&
			!strings.Contains(strings.ToLower(t.Address), q) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, f.Page), len(all), nil
}

func (r *MemoryTenantRepo) Update(ctx context.Context, id uint64, p model.TenantPatch) error {
	defer r.s.lock(ctx)()

	t, ok := r.s.tenants[id]
	if !ok {
		return ErrTenantNotFound
	}
	if p.Name == nil && p.Address == nil {
		return nil
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Address != nil {
		t.Address = *p.Address
	}
	t.UpdatedAt = memNow()
	r.s.tenants[id] = t
	return nil
}

func (r *MemoryTenantRepo) Delete(ctx context.Context, id uint64) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.tenants[id]; !ok {
		return ErrTenantNotFound
	}
	for _, u := range r.s.users {
		if u.TenantID != nil && *u.TenantID == id {
			return ErrTenantInUse
		}
	}
	delete(r.s.tenants, id)
	return nil
}

// MemoryTokenRepo is the in-memory counterpart of TokenRepo.
type MemoryTokenRepo struct{ s *MemoryStore }

func (r *MemoryTokenRepo) Create(ctx context.Context, userID uint64, exp time.Time) (model.RefreshToken, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.users[userID]; !ok {
		return model.RefreshToken{}, ErrUserNotFound
	}
	r.s.seq.token++
	rec := model.RefreshToken{
		ID:        r.s.seq.token,
		UserID:    userID,
		ExpiresAt: exp.UTC().Truncate(time.Second),
		CreatedAt: memNow(),
	}
	r.s.tokens[rec.ID] = rec
	return rec, nil
}

func (r *MemoryTokenRepo) GetByID(ctx context.Context, id uint64) (model.RefreshToken, error) {
	defer r.s.rlock(ctx)()

	rec, ok := r.s.tokens[id]
	if !ok {
		return model.RefreshToken{}, ErrTokenNotFound
	}
	return rec, nil
}

func (r *MemoryTokenRepo) Delete(ctx context.Context, id uint64) error {
	defer r.s.lock(ctx)()
	delete(r.s.tokens, id)
	return nil
}

func (r *MemoryTokenRepo) Consume(ctx context.Context, id uint64) (bool, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.tokens[id]; !ok {
		return false, nil
	}
	delete(r.s.tokens, id)
	return true, nil
}

func (r *MemoryTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, rec := range r.s.tokens {
		if rec.ExpiresAt.Before(now) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}
