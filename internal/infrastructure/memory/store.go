// Package memory implementa los repositorios de turnos y auditoría en memoria.
// Se usa en desarrollo (STORE_DRIVER=memory) y en los tests del motor.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

var (
	_ repository.ShiftRepository = (*ShiftRepo)(nil)
	_ repository.AuditRepository = (*AuditRepo)(nil)
)

// ErrInjected error por defecto de FailNextCommit.
var ErrInjected = errors.New("memory: fallo de commit inyectado")

// Store estado confirmado. Las transacciones se serializan y aplican sus escrituras
// al confirmar; un Rollback las descarta sin tocar el estado.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	shifts   map[string]*entity.Shift
	audit    map[string][]*entity.AuditEntry
	failNext error
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{
		shifts: make(map[string]*entity.Shift),
		audit:  make(map[string][]*entity.AuditEntry),
	}
}

// Shifts repositorio de turnos fuera de transacción (lecturas y escrituras auto-commit).
func (s *Store) Shifts() *ShiftRepo { return &ShiftRepo{store: s} }

// Audit repositorio de auditoría fuera de transacción.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{store: s} }

// FailNextCommit hace fallar el próximo commit con err (o ErrInjected si es nil).
func (s *Store) FailNextCommit(err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Run ejecuta fn con repos atados a una transacción. Commit si fn devuelve nil.
func (s *Store) Run(ctx context.Context, fn func(
	shifts repository.ShiftRepository,
	audit repository.AuditRepository,
) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txState{shifts: make(map[string]*entity.Shift)}
	if err := fn(&ShiftRepo{store: s, tx: tx}, &AuditRepo{store: s, tx: tx}); err != nil {
		return err
	}
	return s.commit(tx)
}

type txState struct {
	shifts map[string]*entity.Shift
	order  []string
	audit  []*entity.AuditEntry
}

func (s *Store) commit(tx *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	for _, id := range tx.order {
		if err := s.checkSingleOpen(tx.shifts[id]); err != nil {
			return err
		}
	}
	for _, id := range tx.order {
		s.shifts[id] = tx.shifts[id]
	}
	for _, e := range tx.audit {
		s.audit[e.ShiftID] = append(s.audit[e.ShiftID], e)
	}
	return nil
}

// checkSingleOpen equivalente al índice único parcial de PostgreSQL. Requiere s.mu tomado.
func (s *Store) checkSingleOpen(sh *entity.Shift) error {
	if !sh.IsOpen() {
		return nil
	}
	for id, other := range s.shifts {
		if id != sh.ID && other.RegisterID == sh.RegisterID && other.IsOpen() {
			return domain.NewOpError("save", sh.ID, domain.ErrShiftAlreadyOpen, "caja %s", sh.RegisterID)
		}
	}
	return nil
}

func (s *Store) get(tx *txState, id string) *entity.Shift {
	if tx != nil {
		if sh, ok := tx.shifts[id]; ok {
			return sh.Clone()
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shifts[id].Clone()
}

// ShiftRepo implementación en memoria de ShiftRepository.
type ShiftRepo struct {
	store *Store
	tx    *txState
}

// GetByID obtiene el turno o (nil, nil).
func (r *ShiftRepo) GetByID(ctx context.Context, id string) (*entity.Shift, error) {
	return r.store.get(r.tx, id), ctx.Err()
}

// GetForUpdate igual que GetByID: las transacciones en memoria ya son exclusivas.
func (r *ShiftRepo) GetForUpdate(ctx context.Context, id string) (*entity.Shift, error) {
	return r.GetByID(ctx, id)
}

// GetActiveByRegister turno abierto de la caja o (nil, nil).
func (r *ShiftRepo) GetActiveByRegister(ctx context.Context, registerID string) (*entity.Shift, error) {
	if r.tx != nil {
		for _, sh := range r.tx.shifts {
			if sh.RegisterID == registerID && sh.IsOpen() {
				return sh.Clone(), nil
			}
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for id, sh := range r.store.shifts {
		if sh.RegisterID != registerID || !sh.IsOpen() {
			continue
		}
		if r.tx != nil {
			if staged, ok := r.tx.shifts[id]; ok && !staged.IsOpen() {
				continue
			}
		}
		return sh.Clone(), nil
	}
	return nil, ctx.Err()
}

// Save guarda una copia del turno. Dentro de una transacción queda pendiente hasta el commit.
func (r *ShiftRepo) Save(ctx context.Context, sh *entity.Shift) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx != nil {
		if _, ok := r.tx.shifts[sh.ID]; !ok {
			r.tx.order = append(r.tx.order, sh.ID)
		}
		r.tx.shifts[sh.ID] = sh.Clone()
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.checkSingleOpen(sh); err != nil {
		return err
	}
	r.store.shifts[sh.ID] = sh.Clone()
	return nil
}

// List cabeceras filtradas, más recientes primero.
func (r *ShiftRepo) List(ctx context.Context, f repository.ShiftFilter) ([]*entity.Shift, error) {
	r.store.mu.RLock()
	out := make([]*entity.Shift, 0, len(r.store.shifts))
	for _, sh := range r.store.shifts {
		if f.RegisterID != "" && sh.RegisterID != f.RegisterID {
			continue
		}
		if f.Status != "" && sh.Status != f.Status {
			continue
		}
		h := sh.Clone()
		h.CashMovements = nil
		h.Postings = nil
		out = append(out, h)
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if f.Offset >= len(out) {
		return []*entity.Shift{}, ctx.Err()
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, ctx.Err()
}

// AuditRepo implementación en memoria de AuditRepository.
type AuditRepo struct {
	store *Store
	tx    *txState
}

// Append agrega la entrada (pendiente hasta el commit si hay transacción).
func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *e
	if r.tx != nil {
		r.tx.audit = append(r.tx.audit, &cp)
		return nil
	}
	r.store.mu.Lock()
	r.store.audit[e.ShiftID] = append(r.store.audit[e.ShiftID], &cp)
	r.store.mu.Unlock()
	return nil
}

// ListByShift entradas del turno en orden de inserción.
func (r *AuditRepo) ListByShift(ctx context.Context, shiftID string) ([]*entity.AuditEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	src := r.store.audit[shiftID]
	out := make([]*entity.AuditEntry, len(src))
	for i, e := range src {
		cp := *e
		out[i] = &cp
	}
	return out, ctx.Err()
}
