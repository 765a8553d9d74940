package entity

import (
	"time"

	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// Acciones auditadas.
const (
	AuditActionOpen     = "shift.open"
	AuditActionPayment  = "shift.payment"
	AuditActionMovement = "shift.movement"
	AuditActionClose    = "shift.close"
)

// AuditEntry registro de quién hizo qué y cuándo sobre un turno.
type AuditEntry struct {
	ID        string
	ShiftID   string
	Action    string
	ActorID   string
	ActorName string
	At        time.Time
	Amount    money.Money
	Detail    string
	RequestID string
}
