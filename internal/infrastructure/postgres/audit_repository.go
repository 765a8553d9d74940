package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo bitácora de turnos sobre PostgreSQL.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserta la entrada.
func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO shift_audit (id, shift_id, action, actor_id, actor_name, at, amount, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.ShiftID, e.Action, e.ActorID, e.ActorName, e.At, e.Amount.Decimal(), e.Detail, nullIfEmpty(e.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByShift entradas del turno en orden de inserción.
func (r *AuditRepo) ListByShift(ctx context.Context, shiftID string) ([]*entity.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, shift_id, action, actor_id, actor_name, at, amount, detail, request_id
		FROM shift_audit WHERE shift_id = $1 ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AuditEntry, 0)
	for rows.Next() {
		var (
			e      entity.AuditEntry
			amount decimal.Decimal
			reqID  *string
		)
		if err := rows.Scan(&e.ID, &e.ShiftID, &e.Action, &e.ActorID, &e.ActorName, &e.At, &amount, &e.Detail, &reqID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Amount, err = money.FromDecimal(amount); err != nil {
			return nil, err
		}
		e.RequestID = fromNull(reqID)
		out = append(out, &e)
	}
	return out, rows.Err()
}
