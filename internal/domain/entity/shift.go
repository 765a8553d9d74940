package entity

import (
	"time"

	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// Estados del turno.
const (
	ShiftStatusOpen   = "OPEN"
	ShiftStatusClosed = "CLOSED"
)

// Medios de pago acumulados por turno.
const (
	PaymentMethodCash    = "cash"
	PaymentMethodCard    = "card"
	PaymentMethodDigital = "digital"
)

// Niveles de desvío al cierre.
const (
	VarianceNormal   = "normal"
	VarianceWarning  = "warning"
	VarianceCritical = "critical"
)

// Shift turno de caja: fondo inicial, ventas por medio de pago, movimientos manuales
// y el arqueo de cierre. Cerrado es terminal.
type Shift struct {
	ID           string
	RegisterID   string // caja/terminal; a lo sumo un turno OPEN por caja
	UserID       string
	UserName     string
	StartTime    time.Time
	StartingCash money.Money

	CashSales    money.Money
	CardSales    money.Money
	DigitalSales money.Money

	CashMovements []CashMovement
	Postings      []SalePosting

	Status string

	// Solo al cierre.
	EndTime       *time.Time
	CountedCash   *money.Money
	ExpectedCash  *money.Money
	Difference    *money.Money // contado - esperado; positivo = sobrante
	VarianceLevel string
	ClosedByID    string
	ClosedByName  string
	CloseNotes    string

	Version   int64
	UpdatedAt time.Time
}

// IsOpen indica si el turno admite mutaciones.
func (s *Shift) IsOpen() bool { return s != nil && s.Status == ShiftStatusOpen }

// HasPosting indica si ya se aplicó un cobro con esa clave de idempotencia.
func (s *Shift) HasPosting(requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, p := range s.Postings {
		if p.RequestID == requestID {
			return true
		}
	}
	return false
}

// HasMovementRequest indica si ya existe un movimiento con esa clave de idempotencia.
func (s *Shift) HasMovementRequest(requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, m := range s.CashMovements {
		if m.RequestID == requestID {
			return true
		}
	}
	return false
}

// Clone copia profunda; los repositorios en memoria nunca comparten slices con el llamador.
func (s *Shift) Clone() *Shift {
	if s == nil {
		return nil
	}
	c := *s
	c.CashMovements = append([]CashMovement(nil), s.CashMovements...)
	c.Postings = append([]SalePosting(nil), s.Postings...)
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	c.CountedCash = cloneMoney(s.CountedCash)
	c.ExpectedCash = cloneMoney(s.ExpectedCash)
	c.Difference = cloneMoney(s.Difference)
	return &c
}

func cloneMoney(m *money.Money) *money.Money {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}

// SalePosting tramo de pago de una venta o devolución aplicado al turno.
type SalePosting struct {
	ID        string
	ShiftID   string
	Method    string
	Amount    money.Money // firmado: negativo para devoluciones
	RequestID string
	PostedAt  time.Time
	UserID    string
	UserName  string
}

// IsValidPaymentMethod valida el medio de pago.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodDigital:
		return true
	}
	return false
}
