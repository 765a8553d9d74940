package shift

import (
	"context"
	"time"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

// record agrega la entrada de auditoría dentro de la misma transacción que el cambio de estado.
func (m *Manager) record(ctx context.Context, audit repository.AuditRepository, shiftID, action string,
	actor entity.Actor, amount money.Money, detail, requestID string, at time.Time) error {
	return audit.Append(ctx, &entity.AuditEntry{
		ID:        m.newID(),
		ShiftID:   shiftID,
		Action:    action,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		At:        at,
		Amount:    amount,
		Detail:    detail,
		RequestID: requestID,
	})
}

// committed log estructurado de una transición confirmada.
func (m *Manager) committed(op string, s *entity.Shift, actor entity.Actor, amount money.Money) {
	m.log.Info().
		Str("op", op).
		Str("shift_id", s.ID).
		Str("register_id", s.RegisterID).
		Str("actor_id", actor.ID).
		Str("amount", amount.String()).
		Str("status", s.Status).
		Int64("version", s.Version).
		Msg("operación de caja aplicada")
}

// AuditTrail bitácora del turno en orden cronológico.
func (m *Manager) AuditTrail(ctx context.Context, shiftID string) ([]*entity.AuditEntry, error) {
	if _, err := m.Get(ctx, shiftID); err != nil {
		return nil, err
	}
	entries, err := m.audit.ListByShift(ctx, shiftID)
	if err != nil {
		return nil, m.fail("auditTrail", shiftID, "", err)
	}
	if entries == nil {
		entries = []*entity.AuditEntry{}
	}
	return entries, nil
}

// IsBusy atajo para transportes que reintentan.
func IsBusy(err error) bool { return domain.IsRetryable(err) }
