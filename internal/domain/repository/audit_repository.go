package repository

import (
	"context"

	"github.com/jhoicas/Caja-api/internal/domain/entity"
)

// AuditRepository bitácora append-only de operaciones sobre turnos.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByShift(ctx context.Context, shiftID string) ([]*entity.AuditEntry, error)
}
