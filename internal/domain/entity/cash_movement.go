package entity

import (
	"time"

	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// Tipos de movimiento manual de caja.
const (
	MovementTypeIN  = "IN"  // ingreso (pay-in)
	MovementTypeOUT = "OUT" // egreso (pay-out)
)

// CashMovement ingreso o egreso manual de efectivo dentro de un turno.
// Inmutable una vez agregado: las correcciones se hacen con un movimiento inverso.
type CashMovement struct {
	ID        string
	ShiftID   string
	Type      string
	Amount    money.Money // siempre > 0; el signo lo da Type
	Reason    string
	RequestID string // clave de idempotencia opcional del llamador
	Timestamp time.Time
	UserID    string
	UserName  string
}

// IsValidMovementType valida el tipo de movimiento.
func IsValidMovementType(t string) bool {
	return t == MovementTypeIN || t == MovementTypeOUT
}
