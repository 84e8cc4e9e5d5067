package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/fossbin/propease/internal/models"
)

type memoryState struct {
	properties   map[uuid.UUID]models.Property
	applications map[uuid.UUID]models.Application
	transactions map[uuid.UUID]models.Transaction
	payments     map[uuid.UUID][]models.Payment
}

// clone copies the maps. Stored values are replaced on write and never
// mutated in place, so the values themselves can be shared.
func (s *memoryState) clone() *memoryState {
	return &memoryState{
		properties:   maps.Clone(s.properties),
		applications: maps.Clone(s.applications),
		transactions: maps.Clone(s.transactions),
		payments:     maps.Clone(s.payments),
	}
}

// MemoryStore is a thread-safe in-memory Store. WithinTx works on a
// copy of the state under the write lock and swaps it in on success, so
// readers never observe a partially applied unit of work.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			properties:   make(map[uuid.UUID]models.Property),
			applications: make(map[uuid.UUID]models.Application),
			transactions: make(map[uuid.UUID]models.Transaction),
			payments:     make(map[uuid.UUID][]models.Payment),
		},
	}
}

// memoryScope routes repository calls either to the committed state under
// the store lock, or to the working copy of an open WithinTx.
type memoryScope struct {
	store *MemoryStore
	tx    *memoryState
}

func (sc memoryScope) read(fn func(st *memoryState) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.RLock()
	defer sc.store.mu.RUnlock()
	return fn(sc.store.state)
}

// write callbacks must validate before mutating; a single write outside
// WithinTx is applied to the committed state directly.
func (sc memoryScope) write(fn func(st *memoryState) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	return fn(sc.store.state)
}

func (sc memoryScope) Properties() PropertyRepository      { return memoryProperties{sc} }
func (sc memoryScope) Applications() ApplicationRepository { return memoryApplications{sc} }
func (sc memoryScope) Transactions() TransactionRepository { return memoryTransactions{sc} }

func (s *MemoryStore) scope() memoryScope { return memoryScope{store: s} }

// Properties returns the property repository outside any unit of work.
func (s *MemoryStore) Properties() PropertyRepository { return s.scope().Properties() }

// Applications returns the application repository outside any unit of work.
func (s *MemoryStore) Applications() ApplicationRepository { return s.scope().Applications() }

// Transactions returns the transaction repository outside any unit of work.
func (s *MemoryStore) Transactions() TransactionRepository { return s.scope().Transactions() }

// WithinTx holds the write lock for the duration of fn.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(r Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(memoryScope{store: s, tx: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Properties -----------------------------------------------------------------

type memoryProperties struct{ sc memoryScope }

func (r memoryProperties) Create(_ context.Context, p *models.Property) error {
	return r.sc.write(func(st *memoryState) error {
		if _, exists := st.properties[p.ID]; exists {
			return fmt.Errorf("%w: property %s already exists", ErrConflict, p.ID)
		}
		st.properties[p.ID] = p.Clone()
		return nil
	})
}

func (r memoryProperties) Get(_ context.Context, id uuid.UUID) (*models.Property, error) {
	var out *models.Property
	err := r.sc.read(func(st *memoryState) error {
		if p, ok := st.properties[id]; ok {
			c := p.Clone()
			out = &c
		}
		return nil
	})
	return out, err
}

func (r memoryProperties) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.Get(ctx, id)
}

func (r memoryProperties) Update(_ context.Context, p *models.Property) error {
	return r.sc.write(func(st *memoryState) error {
		if _, ok := st.properties[p.ID]; !ok {
			return fmt.Errorf("%w: property %s", ErrMissing, p.ID)
		}
		st.properties[p.ID] = p.Clone()
		return nil
	})
}

func (r memoryProperties) List(_ context.Context, filter models.PropertyFilter) ([]models.Property, error) {
	out := []models.Property{}
	err := r.sc.read(func(st *memoryState) error {
		for _, p := range st.properties {
			if filter.Matches(&p) {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Property) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, err
}

// Applications ---------------------------------------------------------------

type memoryApplications struct{ sc memoryScope }

func (r memoryApplications) Create(_ context.Context, a *models.Application) error {
	return r.sc.write(func(st *memoryState) error {
		if _, exists := st.applications[a.ID]; exists {
			return fmt.Errorf("%w: application %s already exists", ErrConflict, a.ID)
		}
		st.applications[a.ID] = a.Clone()
		return nil
	})
}

func (r memoryApplications) Get(_ context.Context, id uuid.UUID) (*models.Application, error) {
	var out *models.Application
	err := r.sc.read(func(st *memoryState) error {
		if a, ok := st.applications[id]; ok {
			c := a.Clone()
			out = &c
		}
		return nil
	})
	return out, err
}

func (r memoryApplications) Update(_ context.Context, a *models.Application) error {
	return r.sc.write(func(st *memoryState) error {
		if _, ok := st.applications[a.ID]; !ok {
			return fmt.Errorf("%w: application %s", ErrMissing, a.ID)
		}
		st.applications[a.ID] = a.Clone()
		return nil
	})
}

func (r memoryApplications) List(_ context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	out := []models.Application{}
	err := r.sc.read(func(st *memoryState) error {
		for _, a := range st.applications {
			if filter.Matches(&a) {
				out = append(out, a.Clone())
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Application) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, err
}

// Transactions ---------------------------------------------------------------

type memoryTransactions struct{ sc memoryScope }

func (r memoryTransactions) Create(_ context.Context, t *models.Transaction) error {
	if err := t.Check(); err != nil {
		return err
	}
	return r.sc.write(func(st *memoryState) error {
		if _, exists := st.transactions[t.ID]; exists {
			return fmt.Errorf("%w: transaction %s already exists", ErrConflict, t.ID)
		}
		for _, existing := range st.transactions {
			if existing.PropertyID == t.PropertyID && existing.Active() {
				return fmt.Errorf("%w: property %s already has active transaction %s", ErrConflict, t.PropertyID, existing.ID)
			}
		}
		st.transactions[t.ID] = t.Clone()
		return nil
	})
}

func (r memoryTransactions) Get(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.sc.read(func(st *memoryState) error {
		if t, ok := st.transactions[id]; ok {
			c := t.Clone()
			out = &c
		}
		return nil
	})
	return out, err
}

func (r memoryTransactions) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.Get(ctx, id)
}

func (r memoryTransactions) Update(_ context.Context, t *models.Transaction) error {
	if err := t.Check(); err != nil {
		return err
	}
	return r.sc.write(func(st *memoryState) error {
		if _, ok := st.transactions[t.ID]; !ok {
			return fmt.Errorf("%w: transaction %s", ErrMissing, t.ID)
		}
		st.transactions[t.ID] = t.Clone()
		return nil
	})
}

func (r memoryTransactions) List(_ context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	out := []models.Transaction{}
	err := r.sc.read(func(st *memoryState) error {
		for _, t := range st.transactions {
			if filter.Matches(&t) {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, err
}

func (r memoryTransactions) RecordPayment(_ context.Context, p *models.Payment) error {
	return r.sc.write(func(st *memoryState) error {
		if _, ok := st.transactions[p.TransactionID]; !ok {
			return fmt.Errorf("%w: transaction %s", ErrMissing, p.TransactionID)
		}
		existing := st.payments[p.TransactionID]
		for _, q := range existing {
			if q.PeriodID == p.PeriodID {
				return fmt.Errorf("%w: period %d of transaction %s already paid", ErrConflict, p.PeriodID, p.TransactionID)
			}
		}
		// Clone so a snapshot taken before this write keeps its own backing array.
		st.payments[p.TransactionID] = append(slices.Clone(existing), *p)
		return nil
	})
}

func (r memoryTransactions) Payments(_ context.Context, transactionID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	err := r.sc.read(func(st *memoryState) error {
		out = slices.Clone(st.payments[transactionID])
		return nil
	})
	if out == nil {
		out = []models.Payment{}
	}
	slices.SortFunc(out, func(a, b models.Payment) int { return a.PeriodID - b.PeriodID })
	return out, err
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
