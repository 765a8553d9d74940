package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

var _ repository.ShiftRepository = (*ShiftRepo)(nil)

// ShiftRepo implementación de ShiftRepository sobre PostgreSQL (usable con pool o tx).
type ShiftRepo struct {
	q Querier
}

// NewShiftRepository construye el adaptador. Pasar pool o tx (Querier).
func NewShiftRepository(q Querier) *ShiftRepo {
	return &ShiftRepo{q: q}
}

const shiftColumns = `
	id, register_id, user_id, user_name, start_time, starting_cash,
	cash_sales, card_sales, digital_sales, status, end_time,
	counted_cash, expected_cash, difference, variance_level,
	closed_by_id, closed_by_name, close_notes, version, updated_at`

// GetByID obtiene el turno con movimientos y cobros. (nil, nil) si no existe.
// Fuera de una transacción, cabecera y detalle se leen en una única instantánea.
func (r *ShiftRepo) GetByID(ctx context.Context, id string) (*entity.Shift, error) {
	return r.snapshot(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE id = $1`, id)
}

// GetForUpdate como GetByID pero bloquea la fila del turno (SELECT FOR UPDATE).
func (r *ShiftRepo) GetForUpdate(ctx context.Context, id string) (*entity.Shift, error) {
	return r.get(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, id)
}

// GetActiveByRegister turno OPEN de la caja. (nil, nil) si no hay.
func (r *ShiftRepo) GetActiveByRegister(ctx context.Context, registerID string) (*entity.Shift, error) {
	return r.snapshot(ctx, `SELECT`+shiftColumns+` FROM shifts WHERE register_id = $1 AND status = 'OPEN'`, registerID)
}

// snapshot ejecuta get dentro de una tx REPEATABLE READ de solo lectura cuando el repo
// está atado al pool. Atado a una tx, la instantánea ya la da esa tx.
func (r *ShiftRepo) snapshot(ctx context.Context, query string, arg string) (*entity.Shift, error) {
	b, ok := r.q.(txBeginner)
	if !ok {
		return r.get(ctx, query, arg)
	}
	tx, err := b.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s, err := NewShiftRepository(tx).get(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return s, nil
}

func (r *ShiftRepo) get(ctx context.Context, query string, arg string) (*entity.Shift, error) {
	s, err := scanShift(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	if s.CashMovements, err = r.movements(ctx, s.ID); err != nil {
		return nil, err
	}
	if s.Postings, err = r.postings(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func scanShift(row pgx.Row) (*entity.Shift, error) {
	var (
		s                             entity.Shift
		starting, cash, card, digital decimal.Decimal
		counted, expected, difference *decimal.Decimal
		endTime                       *time.Time
	)
	err := row.Scan(
		&s.ID, &s.RegisterID, &s.UserID, &s.UserName, &s.StartTime, &starting,
		&cash, &card, &digital, &s.Status, &endTime,
		&counted, &expected, &difference, &s.VarianceLevel,
		&s.ClosedByID, &s.ClosedByName, &s.CloseNotes, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.EndTime = endTime
	if s.StartingCash, err = money.FromDecimal(starting); err != nil {
		return nil, err
	}
	if s.CashSales, err = money.FromDecimal(cash); err != nil {
		return nil, err
	}
	if s.CardSales, err = money.FromDecimal(card); err != nil {
		return nil, err
	}
	if s.DigitalSales, err = money.FromDecimal(digital); err != nil {
		return nil, err
	}
	if s.CountedCash, err = fromDecimalPtr(counted); err != nil {
		return nil, err
	}
	if s.ExpectedCash, err = fromDecimalPtr(expected); err != nil {
		return nil, err
	}
	if s.Difference, err = fromDecimalPtr(difference); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShiftRepo) movements(ctx context.Context, shiftID string) ([]entity.CashMovement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, shift_id, type, amount, reason, request_id, created_at, user_id, user_name
		FROM cash_movements WHERE shift_id = $1 ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	defer rows.Close()

	var out []entity.CashMovement
	for rows.Next() {
		var (
			m      entity.CashMovement
			amount decimal.Decimal
			reqID  *string
		)
		if err := rows.Scan(&m.ID, &m.ShiftID, &m.Type, &amount, &m.Reason, &reqID, &m.Timestamp, &m.UserID, &m.UserName); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		if m.Amount, err = money.FromDecimal(amount); err != nil {
			return nil, err
		}
		m.RequestID = fromNull(reqID)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ShiftRepo) postings(ctx context.Context, shiftID string) ([]entity.SalePosting, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, shift_id, method, amount, request_id, posted_at, user_id, user_name
		FROM sale_postings WHERE shift_id = $1 ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list sale postings: %w", err)
	}
	defer rows.Close()

	var out []entity.SalePosting
	for rows.Next() {
		var (
			p      entity.SalePosting
			amount decimal.Decimal
			reqID  *string
		)
		if err := rows.Scan(&p.ID, &p.ShiftID, &p.Method, &amount, &reqID, &p.PostedAt, &p.UserID, &p.UserName); err != nil {
			return nil, fmt.Errorf("scan sale posting: %w", err)
		}
		if p.Amount, err = money.FromDecimal(amount); err != nil {
			return nil, err
		}
		p.RequestID = fromNull(reqID)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save upsert de la cabecera más los movimientos y cobros que aún no están persistidos.
// Los libros son append-only: solo se inserta la cola posterior a lo ya guardado,
// todo en un único lote.
func (r *ShiftRepo) Save(ctx context.Context, s *entity.Shift) error {
	var storedMovements, storedPostings int
	err := r.q.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM cash_movements WHERE shift_id = $1),
			(SELECT count(*) FROM sale_postings WHERE shift_id = $1)`, s.ID,
	).Scan(&storedMovements, &storedPostings)
	if err != nil {
		return fmt.Errorf("count stored entries: %w", err)
	}
	if storedMovements > len(s.CashMovements) || storedPostings > len(s.Postings) {
		return fmt.Errorf("save shift %s: el libro en memoria es más corto que el persistido", s.ID)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			cash_sales = EXCLUDED.cash_sales,
			card_sales = EXCLUDED.card_sales,
			digital_sales = EXCLUDED.digital_sales,
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			counted_cash = EXCLUDED.counted_cash,
			expected_cash = EXCLUDED.expected_cash,
			difference = EXCLUDED.difference,
			variance_level = EXCLUDED.variance_level,
			closed_by_id = EXCLUDED.closed_by_id,
			closed_by_name = EXCLUDED.closed_by_name,
			close_notes = EXCLUDED.close_notes,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.RegisterID, s.UserID, s.UserName, s.StartTime, s.StartingCash.Decimal(),
		s.CashSales.Decimal(), s.CardSales.Decimal(), s.DigitalSales.Decimal(), s.Status, s.EndTime,
		moneyPtr(s.CountedCash), moneyPtr(s.ExpectedCash), moneyPtr(s.Difference), s.VarianceLevel,
		s.ClosedByID, s.ClosedByName, s.CloseNotes, s.Version, s.UpdatedAt,
	)
	for i := storedMovements; i < len(s.CashMovements); i++ {
		m := s.CashMovements[i]
		batch.Queue(`
			INSERT INTO cash_movements (id, shift_id, seq, type, amount, reason, request_id, created_at, user_id, user_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			m.ID, s.ID, i, m.Type, m.Amount.Decimal(), m.Reason, nullIfEmpty(m.RequestID), m.Timestamp, m.UserID, m.UserName,
		)
	}
	for i := storedPostings; i < len(s.Postings); i++ {
		p := s.Postings[i]
		batch.Queue(`
			INSERT INTO sale_postings (id, shift_id, seq, method, amount, request_id, posted_at, user_id, user_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, s.ID, i, p.Method, p.Amount.Decimal(), nullIfEmpty(p.RequestID), p.PostedAt, p.UserID, p.UserName,
		)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	if _, err := br.Exec(); err != nil {
		if isUniqueViolation(err) && constraintName(err) == "shifts_one_open_per_register" {
			return domain.NewOpError("save", s.ID, domain.ErrShiftAlreadyOpen, "caja %s", s.RegisterID)
		}
		return fmt.Errorf("upsert shift: %w", err)
	}
	for i := storedMovements; i < len(s.CashMovements); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert cash movement: %w", err)
		}
	}
	for i := storedPostings; i < len(s.Postings); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert sale posting: %w", err)
		}
	}
	return br.Close()
}

// List cabeceras filtradas, más recientes primero.
func (r *ShiftRepo) List(ctx context.Context, f repository.ShiftFilter) ([]*entity.Shift, error) {
	var (
		where []string
		args  []any
	)
	if f.RegisterID != "" {
		args = append(args, f.RegisterID)
		where = append(where, fmt.Sprintf("register_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY start_time DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Shift, 0)
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
