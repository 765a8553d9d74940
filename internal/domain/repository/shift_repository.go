package repository

import (
	"context"

	"github.com/jhoicas/Caja-api/internal/domain/entity"
)

// ShiftFilter filtros para listar turnos.
type ShiftFilter struct {
	RegisterID string
	Status     string
	Limit      int
	Offset     int
}

// ShiftRepository puerto de persistencia del turno (gateway).
// Las lecturas devuelven (nil, nil) cuando el turno no existe.
type ShiftRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Shift, error)
	// GetForUpdate igual que GetByID pero bloquea el turno hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Shift, error)
	GetActiveByRegister(ctx context.Context, registerID string) (*entity.Shift, error)
	// Save upsert del estado completo. Movimientos y cobros son append-only:
	// los existentes nunca se reescriben.
	Save(ctx context.Context, shift *entity.Shift) error
	// List devuelve cabeceras (sin movimientos ni cobros), más recientes primero.
	List(ctx context.Context, filter ShiftFilter) ([]*entity.Shift, error)
}
