// Package sqlite implementa la persistencia de turnos sobre SQLite (un solo archivo).
//
// Pensado para cajas que operan sin servidor de base de datos. Los montos se guardan
// como INTEGER en centavos; las fechas como texto UTC de ancho fijo.
// Se abre en modo WAL con una única conexión: SQLite admite un solo escritor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

var (
	_ repository.ShiftRepository = (*ShiftRepo)(nil)
	_ repository.AuditRepository = (*AuditRepo)(nil)
)

// dbtx común a *sql.DB y *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store conexión SQLite con el esquema de turnos.
type Store struct {
	db *sql.DB
}

// New abre (o crea) la base en path. ":memory:" para una base efímera.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("abrir sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrar sqlite: %w", err)
	}
	return s, nil
}

// Close cierra la conexión.
func (s *Store) Close() error { return s.db.Close() }

// Shifts repositorio fuera de transacción.
func (s *Store) Shifts() *ShiftRepo { return &ShiftRepo{q: s.db} }

// Audit repositorio de auditoría fuera de transacción.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{q: s.db} }

// Run ejecuta fn dentro de una transacción; Commit si fn devuelve nil.
func (s *Store) Run(ctx context.Context, fn func(
	shifts repository.ShiftRepository,
	audit repository.AuditRepository,
) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ShiftRepo{q: tx}, &AuditRepo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		register_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		starting_cash INTEGER NOT NULL,
		cash_sales INTEGER NOT NULL DEFAULT 0,
		card_sales INTEGER NOT NULL DEFAULT 0,
		digital_sales INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK (status IN ('OPEN', 'CLOSED')),
		end_time TEXT,
		counted_cash INTEGER,
		expected_cash INTEGER,
		difference INTEGER,
		variance_level TEXT NOT NULL DEFAULT '',
		closed_by_id TEXT NOT NULL DEFAULT '',
		closed_by_name TEXT NOT NULL DEFAULT '',
		close_notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_one_open
		ON shifts(register_id) WHERE status = 'OPEN';

	CREATE TABLE IF NOT EXISTS cash_movements (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		reason TEXT NOT NULL,
		request_id TEXT,
		created_at TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		UNIQUE (shift_id, seq)
	);

	CREATE TABLE IF NOT EXISTS sale_postings (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		seq INTEGER NOT NULL,
		method TEXT NOT NULL,
		amount INTEGER NOT NULL,
		request_id TEXT,
		posted_at TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		UNIQUE (shift_id, seq)
	);

	CREATE TABLE IF NOT EXISTS shift_audit (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		shift_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		request_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_shift_audit_shift ON shift_audit(shift_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ShiftRepo turnos sobre SQLite.
type ShiftRepo struct {
	q dbtx
}

const shiftColumns = `id, register_id, user_id, user_name, start_time, starting_cash,
	cash_sales, card_sales, digital_sales, status, end_time,
	counted_cash, expected_cash, difference, variance_level,
	closed_by_id, closed_by_name, close_notes, version, updated_at`

// GetByID turno completo o (nil, nil). Cabecera y detalle salen de una misma transacción.
func (r *ShiftRepo) GetByID(ctx context.Context, id string) (*entity.Shift, error) {
	return r.snapshot(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
}

// GetForUpdate en SQLite la transacción ya es exclusiva para escritura.
func (r *ShiftRepo) GetForUpdate(ctx context.Context, id string) (*entity.Shift, error) {
	return r.get(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
}

// GetActiveByRegister turno OPEN de la caja o (nil, nil).
func (r *ShiftRepo) GetActiveByRegister(ctx context.Context, registerID string) (*entity.Shift, error) {
	return r.snapshot(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE register_id = ? AND status = 'OPEN'`, registerID)
}

// snapshot abre una transacción de lectura si el repo no está ya dentro de una.
func (r *ShiftRepo) snapshot(ctx context.Context, query, arg string) (*entity.Shift, error) {
	db, ok := r.q.(*sql.DB)
	if !ok {
		return r.get(ctx, query, arg)
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	s, err := (&ShiftRepo{q: tx}).get(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return s, nil
}

func (r *ShiftRepo) get(ctx context.Context, query, arg string) (*entity.Shift, error) {
	s, err := scanShift(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(row scanner) (*entity.Shift, error) {
	var (
		s                             entity.Shift
		start, updated                string
		starting, cash, card, digital int64
		endTime                       sql.NullString
		counted, expected, difference sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.RegisterID, &s.UserID, &s.UserName, &start, &starting,
		&cash, &card, &digital, &s.Status, &endTime,
		&counted, &expected, &difference, &s.VarianceLevel,
		&s.ClosedByID, &s.ClosedByName, &s.CloseNotes, &s.Version, &updated,
	)
	if err != nil {
		return nil, err
	}
	s.StartTime = parseTime(start)
	s.UpdatedAt = parseTime(updated)
	s.StartingCash = money.FromCents(starting)
	s.CashSales = money.FromCents(cash)
	s.CardSales = money.FromCents(card)
	s.DigitalSales = money.FromCents(digital)
	if endTime.Valid {
		t := parseTime(endTime.String)
		s.EndTime = &t
	}
	s.CountedCash = centsPtr(counted)
	s.ExpectedCash = centsPtr(expected)
	s.Difference = centsPtr(difference)
	return &s, nil
}

func (r *ShiftRepo) movements(ctx context.Context, shiftID string) ([]entity.CashMovement, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, shift_id, type, amount, reason, request_id, created_at, user_id, user_name
		FROM cash_movements WHERE shift_id = ? ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	defer rows.Close()

	var out []entity.CashMovement
	for rows.Next() {
		var (
			m         entity.CashMovement
			amount    int64
			reqID     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.ShiftID, &m.Type, &amount, &m.Reason, &reqID, &createdAt, &m.UserID, &m.UserName); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		m.Amount = money.FromCents(amount)
		m.RequestID = reqID.String
		m.Timestamp = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ShiftRepo) postings(ctx context.Context, shiftID string) ([]entity.SalePosting, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, shift_id, method, amount, request_id, posted_at, user_id, user_name
		FROM sale_postings WHERE shift_id = ? ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list sale postings: %w", err)
	}
	defer rows.Close()

	var out []entity.SalePosting
	for rows.Next() {
		var (
			p        entity.SalePosting
			amount   int64
			reqID    sql.NullString
			postedAt string
		)
		if err := rows.Scan(&p.ID, &p.ShiftID, &p.Method, &amount, &reqID, &postedAt, &p.UserID, &p.UserName); err != nil {
			return nil, fmt.Errorf("scan sale posting: %w", err)
		}
		p.Amount = money.FromCents(amount)
		p.RequestID = reqID.String
		p.PostedAt = parseTime(postedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save upsert de la cabecera e inserción única de movimientos y cobros.
func (r *ShiftRepo) Save(ctx context.Context, s *entity.Shift) error {
	var endTime any
	if s.EndTime != nil {
		endTime = formatTime(*s.EndTime)
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cash_sales = excluded.cash_sales,
			card_sales = excluded.card_sales,
			digital_sales = excluded.digital_sales,
			status = excluded.status,
			end_time = excluded.end_time,
			counted_cash = excluded.counted_cash,
			expected_cash = excluded.expected_cash,
			difference = excluded.difference,
			variance_level = excluded.variance_level,
			closed_by_id = excluded.closed_by_id,
			closed_by_name = excluded.closed_by_name,
			close_notes = excluded.close_notes,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		s.ID, s.RegisterID, s.UserID, s.UserName, formatTime(s.StartTime), s.StartingCash.Cents(),
		s.CashSales.Cents(), s.CardSales.Cents(), s.DigitalSales.Cents(), s.Status, endTime,
		nullCents(s.CountedCash), nullCents(s.ExpectedCash), nullCents(s.Difference), s.VarianceLevel,
		s.ClosedByID, s.ClosedByName, s.CloseNotes, s.Version, formatTime(s.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "shifts.register_id") {
			return domain.NewOpError("save", s.ID, domain.ErrShiftAlreadyOpen, "caja %s", s.RegisterID)
		}
		return fmt.Errorf("upsert shift: %w", err)
	}

	for i, m := range s.CashMovements {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO cash_movements (id, shift_id, seq, type, amount, reason, request_id, created_at, user_id, user_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			m.ID, s.ID, i, m.Type, m.Amount.Cents(), m.Reason, nullString(m.RequestID), formatTime(m.Timestamp), m.UserID, m.UserName,
		)
		if err != nil {
			return fmt.Errorf("insert cash movement: %w", err)
		}
	}
	for i, p := range s.Postings {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO sale_postings (id, shift_id, seq, method, amount, request_id, posted_at, user_id, user_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			p.ID, s.ID, i, p.Method, p.Amount.Cents(), nullString(p.RequestID), formatTime(p.PostedAt), p.UserID, p.UserName,
		)
		if err != nil {
			return fmt.Errorf("insert sale posting: %w", err)
		}
	}
	return nil
}

// List cabeceras filtradas, más recientes primero.
func (r *ShiftRepo) List(ctx context.Context, f repository.ShiftFilter) ([]*entity.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE 1 = 1`
	var args []any
	if f.RegisterID != "" {
		query += ` AND register_id = ?`
		args = append(args, f.RegisterID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` ORDER BY start_time DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
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

// AuditRepo bitácora sobre SQLite.
type AuditRepo struct {
	q dbtx
}

// Append inserta la entrada.
func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO shift_audit (id, shift_id, action, actor_id, actor_name, at, amount, detail, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ShiftID, e.Action, e.ActorID, e.ActorName, formatTime(e.At), e.Amount.Cents(), e.Detail, nullString(e.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByShift entradas del turno en orden de inserción.
func (r *AuditRepo) ListByShift(ctx context.Context, shiftID string) ([]*entity.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, shift_id, action, actor_id, actor_name, at, amount, detail, request_id
		FROM shift_audit WHERE shift_id = ? ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AuditEntry, 0)
	for rows.Next() {
		var (
			e      entity.AuditEntry
			at     string
			amount int64
			reqID  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ShiftID, &e.Action, &e.ActorID, &e.ActorName, &at, &amount, &e.Detail, &reqID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.At = parseTime(at)
		e.Amount = money.FromCents(amount)
		e.RequestID = reqID.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// timeLayout ancho fijo para que el orden lexicográfico coincida con el cronológico.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullCents(m *money.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents()
}

func centsPtr(n sql.NullInt64) *money.Money {
	if !n.Valid {
		return nil
	}
	m := money.FromCents(n.Int64)
	return &m
}
