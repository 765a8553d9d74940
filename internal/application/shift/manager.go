// Package shift implementa el ciclo de vida del turno de caja:
// apertura, cobros por medio de pago, movimientos manuales y cierre con arqueo.
//
// Cada operación de escritura toma el candado del turno (o de la caja, en la apertura),
// lee el estado dentro de una transacción, valida, calcula el siguiente estado y lo
// persiste junto con su registro de auditoría. Si la persistencia falla no queda nada
// aplicado y el error es reintentable.
package shift

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/cashdrawer"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

// Nombres de operación usados en errores, logs y auditoría.
const (
	OpOpen        = "open"
	OpPostPayment = "postSalePayment"
	OpAddMovement = "addCashMovement"
	OpClose       = "close"
	OpSummary     = "getSummary"
)

// TxRunner ejecuta fn dentro de una transacción con repositorios atados a ella.
// Commit si fn devuelve nil, Rollback en cualquier otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		shifts repository.ShiftRepository,
		audit repository.AuditRepository,
	) error) error
}

// Config parámetros del motor.
type Config struct {
	// LockTimeout espera máxima por el candado del turno.
	LockTimeout time.Duration
	// SignedPostings permite cobros negativos (devoluciones) que descuentan del acumulador.
	SignedPostings bool
	Thresholds     cashdrawer.VarianceThresholds
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{
		LockTimeout:    5 * time.Second,
		SignedPostings: true,
		Thresholds:     cashdrawer.DefaultThresholds(),
	}
}

// Manager máquina de estados del turno.
type Manager struct {
	tx     TxRunner
	shifts repository.ShiftRepository
	audit  repository.AuditRepository
	locks  *Locker
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Option personaliza el Manager.
type Option func(*Manager)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator reemplaza el generador de IDs (tests).
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithLogger asigna el logger estructurado.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager construye el Manager. shifts y audit se usan para lecturas fuera de transacción.
func NewManager(tx TxRunner, shifts repository.ShiftRepository, audit repository.AuditRepository, cfg Config, opts ...Option) *Manager {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	if cfg.Thresholds.WarnPct.IsZero() && cfg.Thresholds.CriticalPct.IsZero() {
		cfg.Thresholds = cashdrawer.DefaultThresholds()
	}
	m := &Manager{
		tx:     tx,
		shifts: shifts,
		audit:  audit,
		locks:  NewLocker(),
		cfg:    cfg,
		log:    zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenInput datos de apertura.
type OpenInput struct {
	RegisterID   string
	StartingCash money.Money
	Actor        entity.Actor
}

// PostPaymentInput tramo de pago de una venta/devolución.
type PostPaymentInput struct {
	ShiftID   string
	Method    string
	Amount    money.Money
	RequestID string
	Actor     entity.Actor
}

// MovementInput ingreso/egreso manual.
type MovementInput struct {
	ShiftID   string
	Type      string
	Amount    money.Money
	Reason    string
	RequestID string
	Actor     entity.Actor
}

// CloseInput arqueo de cierre.
type CloseInput struct {
	ShiftID     string
	CountedCash money.Money
	Notes       string
	Actor       entity.Actor
}

// Open abre un turno en la caja indicada con el fondo inicial.
func (m *Manager) Open(ctx context.Context, in OpenInput) (*entity.Shift, error) {
	if !in.Actor.Valid() {
		return nil, m.reject(&domain.OpError{Op: OpOpen, RegisterID: in.RegisterID, Err: domain.ErrMissingActor})
	}
	if in.RegisterID == "" {
		return nil, m.reject(&domain.OpError{Op: OpOpen, Err: domain.ErrInvalidInput, Reason: "register_id requerido"})
	}
	if in.StartingCash.IsNegative() {
		return nil, m.reject(&domain.OpError{Op: OpOpen, RegisterID: in.RegisterID, Err: domain.ErrInvalidAmount,
			Reason: "el fondo inicial no puede ser negativo: " + in.StartingCash.String()})
	}

	unlock, err := m.acquire(ctx, "register:"+in.RegisterID, OpOpen, "")
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := m.now()
	var opened *entity.Shift
	err = m.tx.Run(ctx, func(shifts repository.ShiftRepository, audit repository.AuditRepository) error {
		active, err := shifts.GetActiveByRegister(ctx, in.RegisterID)
		if err != nil {
			return err
		}
		if active != nil {
			return &domain.OpError{Op: OpOpen, RegisterID: in.RegisterID, Err: domain.ErrShiftAlreadyOpen,
				Reason: "turno activo " + active.ID}
		}
		s := &entity.Shift{
			ID:           m.newID(),
			RegisterID:   in.RegisterID,
			UserID:       in.Actor.ID,
			UserName:     in.Actor.Name,
			StartTime:    now,
			StartingCash: in.StartingCash,
			Status:       entity.ShiftStatusOpen,
			Version:      1,
			UpdatedAt:    now,
		}
		if err := shifts.Save(ctx, s); err != nil {
			return err
		}
		if err := m.record(ctx, audit, s.ID, entity.AuditActionOpen, in.Actor, in.StartingCash, "apertura caja "+in.RegisterID, "", now); err != nil {
			return err
		}
		opened = s
		return nil
	})
	if err != nil {
		return nil, m.fail(OpOpen, "", in.RegisterID, err)
	}
	m.committed(OpOpen, opened, in.Actor, in.StartingCash)
	return opened, nil
}

// PostSalePayment suma el tramo de pago al acumulador del medio correspondiente.
// Un RequestID repetido en el mismo turno no se vuelve a aplicar.
func (m *Manager) PostSalePayment(ctx context.Context, in PostPaymentInput) (*entity.Shift, error) {
	if !in.Actor.Valid() {
		return nil, m.reject(domain.NewOpError(OpPostPayment, in.ShiftID, domain.ErrMissingActor, ""))
	}
	if !entity.IsValidPaymentMethod(in.Method) {
		return nil, m.reject(domain.NewOpError(OpPostPayment, in.ShiftID, domain.ErrInvalidPaymentMethod, "%q", in.Method))
	}
	if in.Amount.IsZero() || (in.Amount.IsNegative() && !m.cfg.SignedPostings) {
		return nil, m.reject(domain.NewOpError(OpPostPayment, in.ShiftID, domain.ErrInvalidAmount, "monto %s", in.Amount))
	}

	unlock, err := m.acquire(ctx, "shift:"+in.ShiftID, OpPostPayment, in.ShiftID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := m.now()
	var (
		result    *entity.Shift
		duplicate bool
	)
	err = m.tx.Run(ctx, func(shifts repository.ShiftRepository, audit repository.AuditRepository) error {
		s, err := m.loadOpen(ctx, shifts, OpPostPayment, in.ShiftID, false)
		if err != nil {
			return err
		}
		if s.HasPosting(in.RequestID) {
			result, duplicate = s, true
			return nil
		}
		// Una devolución puede dejar el acumulador en negativo (venta de otro turno).
		acc := accumulator(s, in.Method)
		next, err := acc.AddChecked(in.Amount)
		if err != nil {
			return domain.NewOpError(OpPostPayment, s.ID, errors.Join(domain.ErrInvalidAmount, err),
				"el acumulador %s queda fuera de rango", in.Method)
		}
		*acc = next
		s.Postings = append(s.Postings, entity.SalePosting{
			ID:        m.newID(),
			ShiftID:   s.ID,
			Method:    in.Method,
			Amount:    in.Amount,
			RequestID: in.RequestID,
			PostedAt:  now,
			UserID:    in.Actor.ID,
			UserName:  in.Actor.Name,
		})
		touch(s, now)
		if err := shifts.Save(ctx, s); err != nil {
			return err
		}
		if err := m.record(ctx, audit, s.ID, entity.AuditActionPayment, in.Actor, in.Amount, in.Method, in.RequestID, now); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, m.fail(OpPostPayment, in.ShiftID, "", err)
	}
	if duplicate {
		m.log.Info().Str("op", OpPostPayment).Str("shift_id", in.ShiftID).Str("request_id", in.RequestID).
			Msg("cobro repetido ignorado")
		return result, nil
	}
	m.committed(OpPostPayment, result, in.Actor, in.Amount)
	return result, nil
}

// AddCashMovement agrega un ingreso/egreso manual al libro del turno.
func (m *Manager) AddCashMovement(ctx context.Context, in MovementInput) (*entity.Shift, error) {
	if !in.Actor.Valid() {
		return nil, m.reject(domain.NewOpError(OpAddMovement, in.ShiftID, domain.ErrMissingActor, ""))
	}
	if err := cashdrawer.ValidateMovement(in.Type, in.Amount, in.Reason); err != nil {
		return nil, m.reject(domain.NewOpError(OpAddMovement, in.ShiftID, err, "tipo %q monto %s", in.Type, in.Amount))
	}

	unlock, err := m.acquire(ctx, "shift:"+in.ShiftID, OpAddMovement, in.ShiftID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := m.now()
	var (
		result    *entity.Shift
		duplicate bool
	)
	err = m.tx.Run(ctx, func(shifts repository.ShiftRepository, audit repository.AuditRepository) error {
		s, err := m.loadOpen(ctx, shifts, OpAddMovement, in.ShiftID, false)
		if err != nil {
			return err
		}
		if s.HasMovementRequest(in.RequestID) {
			result, duplicate = s, true
			return nil
		}
		ledger := cashdrawer.NewLedger(s.CashMovements)
		if err := ledger.Append(entity.CashMovement{
			ID:        m.newID(),
			ShiftID:   s.ID,
			Type:      in.Type,
			Amount:    in.Amount,
			Reason:    in.Reason,
			RequestID: in.RequestID,
			Timestamp: now,
			UserID:    in.Actor.ID,
			UserName:  in.Actor.Name,
		}); err != nil {
			return domain.NewOpError(OpAddMovement, s.ID, err, "")
		}
		s.CashMovements = ledger.Movements()
		touch(s, now)
		if err := shifts.Save(ctx, s); err != nil {
			return err
		}
		if err := m.record(ctx, audit, s.ID, entity.AuditActionMovement, in.Actor, in.Amount, in.Type+": "+in.Reason, in.RequestID, now); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, m.fail(OpAddMovement, in.ShiftID, "", err)
	}
	if duplicate {
		m.log.Info().Str("op", OpAddMovement).Str("shift_id", in.ShiftID).Str("request_id", in.RequestID).
			Msg("movimiento repetido ignorado")
		return result, nil
	}
	m.committed(OpAddMovement, result, in.Actor, in.Amount)
	return result, nil
}

// Close cierra el turno con el efectivo contado. Transición terminal y única.
func (m *Manager) Close(ctx context.Context, in CloseInput) (*entity.Shift, error) {
	if !in.Actor.Valid() {
		return nil, m.reject(domain.NewOpError(OpClose, in.ShiftID, domain.ErrMissingActor, ""))
	}
	if in.CountedCash.IsNegative() {
		return nil, m.reject(domain.NewOpError(OpClose, in.ShiftID, domain.ErrInvalidAmount,
			"el efectivo contado no puede ser negativo: %s", in.CountedCash))
	}

	unlock, err := m.acquire(ctx, "shift:"+in.ShiftID, OpClose, in.ShiftID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := m.now()
	var closed *entity.Shift
	err = m.tx.Run(ctx, func(shifts repository.ShiftRepository, audit repository.AuditRepository) error {
		s, err := m.loadOpen(ctx, shifts, OpClose, in.ShiftID, true)
		if err != nil {
			return err
		}
		expected := cashdrawer.ExpectedCash(s)
		diff := cashdrawer.Difference(s, in.CountedCash)
		counted := in.CountedCash
		end := now

		s.Status = entity.ShiftStatusClosed
		s.EndTime = &end
		s.CountedCash = &counted
		s.ExpectedCash = &expected
		s.Difference = &diff
		s.VarianceLevel = cashdrawer.ClassifyVariance(diff, expected, m.cfg.Thresholds)
		s.ClosedByID = in.Actor.ID
		s.ClosedByName = in.Actor.Name
		s.CloseNotes = in.Notes
		touch(s, now)
		if err := shifts.Save(ctx, s); err != nil {
			return err
		}
		detail := "esperado " + expected.String() + " diferencia " + diff.String() + " (" + s.VarianceLevel + ")"
		if err := m.record(ctx, audit, s.ID, entity.AuditActionClose, in.Actor, counted, detail, "", now); err != nil {
			return err
		}
		closed = s
		return nil
	})
	if err != nil {
		return nil, m.fail(OpClose, in.ShiftID, "", err)
	}
	m.committed(OpClose, closed, in.Actor, in.CountedCash)
	if closed.VarianceLevel == entity.VarianceCritical {
		m.log.Warn().Str("shift_id", closed.ID).Str("difference", closed.Difference.String()).
			Msg("cierre con desvío crítico")
	}
	return closed, nil
}

// GetSummary resumen de billetera sin tomar el candado: una sola lectura del turno.
func (m *Manager) GetSummary(ctx context.Context, shiftID string) (cashdrawer.Summary, error) {
	s, err := m.Get(ctx, shiftID)
	if err != nil {
		return cashdrawer.Summary{}, err
	}
	return cashdrawer.Summarize(s), nil
}

// Get devuelve el turno o ErrNotFound.
func (m *Manager) Get(ctx context.Context, shiftID string) (*entity.Shift, error) {
	s, err := m.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, m.fail(OpSummary, shiftID, "", err)
	}
	if s == nil {
		return nil, domain.NewOpError(OpSummary, shiftID, domain.ErrNotFound, "")
	}
	return s, nil
}

// GetActive turno abierto de la caja, o nil si no hay.
func (m *Manager) GetActive(ctx context.Context, registerID string) (*entity.Shift, error) {
	s, err := m.shifts.GetActiveByRegister(ctx, registerID)
	if err != nil {
		return nil, m.fail("getActive", "", registerID, err)
	}
	return s, nil
}

// List lista cabeceras de turnos.
func (m *Manager) List(ctx context.Context, f repository.ShiftFilter) ([]*entity.Shift, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	list, err := m.shifts.List(ctx, f)
	if err != nil {
		return nil, m.fail("list", "", f.RegisterID, err)
	}
	return list, nil
}

// Movements libro de movimientos del turno en orden de inserción.
func (m *Manager) Movements(ctx context.Context, shiftID string) ([]entity.CashMovement, error) {
	s, err := m.Get(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	return cashdrawer.NewLedger(s.CashMovements).Movements(), nil
}

// loadOpen lee el turno bloqueado y verifica que esté abierto.
// En el cierre un turno ya cerrado responde ErrShiftAlreadyClosed; en el resto ErrShiftNotActive.
func (m *Manager) loadOpen(ctx context.Context, shifts repository.ShiftRepository, op, shiftID string, closing bool) (*entity.Shift, error) {
	s, err := shifts.GetForUpdate(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.NewOpError(op, shiftID, domain.ErrShiftNotActive, "turno inexistente")
	}
	if !s.IsOpen() {
		if closing {
			return nil, domain.NewOpError(op, shiftID, domain.ErrShiftAlreadyClosed, "")
		}
		return nil, domain.NewOpError(op, shiftID, domain.ErrShiftNotActive, "turno cerrado")
	}
	return s, nil
}

// acquire toma el candado con el timeout configurado.
func (m *Manager) acquire(ctx context.Context, key, op, shiftID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, m.cfg.LockTimeout)
	defer cancel()
	unlock, err := m.locks.Lock(lockCtx, key)
	if err != nil {
		return nil, m.reject(&domain.OpError{Op: op, ShiftID: shiftID, Err: domain.ErrShiftBusy, Reason: err.Error()})
	}
	return unlock, nil
}

// fail normaliza errores: los de dominio pasan tal cual, el resto es fallo de persistencia.
func (m *Manager) fail(op, shiftID, registerID string, err error) error {
	var opErr *domain.OpError
	if errors.As(err, &opErr) || domain.IsClientError(err) || domain.IsRetryable(err) || errors.Is(err, domain.ErrNotFound) {
		return m.reject(err)
	}
	m.log.Error().Err(err).Str("op", op).Str("shift_id", shiftID).Str("register_id", registerID).
		Msg("fallo de persistencia")
	return &domain.OpError{Op: op, ShiftID: shiftID, RegisterID: registerID, Err: domain.ErrPersistenceFailure, Reason: err.Error()}
}

func (m *Manager) reject(err error) error {
	m.log.Warn().Err(err).Msg("operación rechazada")
	return err
}

func accumulator(s *entity.Shift, method string) *money.Money {
	switch method {
	case entity.PaymentMethodCard:
		return &s.CardSales
	case entity.PaymentMethodDigital:
		return &s.DigitalSales
	default:
		return &s.CashSales
	}
}

func touch(s *entity.Shift, now time.Time) {
	s.Version++
	s.UpdatedAt = now
}
