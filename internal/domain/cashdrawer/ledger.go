// Package cashdrawer contiene la lógica pura de la gaveta de efectivo: el libro de
// movimientos manuales (append-only) y el cálculo de arqueo esperado vs contado.
package cashdrawer

import (
	"errors"
	"strings"

	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// Ledger secuencia ordenada de movimientos de un turno.
// Solo admite Append: nunca modifica ni elimina entradas existentes.
type Ledger struct {
	movements []entity.CashMovement
}

// NewLedger construye el libro a partir de los movimientos ya persistidos (en orden).
func NewLedger(existing []entity.CashMovement) *Ledger {
	return &Ledger{movements: append([]entity.CashMovement(nil), existing...)}
}

// ValidateMovement valida tipo, monto y motivo de un movimiento.
func ValidateMovement(movementType string, amount money.Money, reason string) error {
	if !entity.IsValidMovementType(movementType) {
		return domain.ErrInvalidMovement
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		return domain.ErrInvalidMovement
	}
	return nil
}

// Append valida y agrega el movimiento al final.
// Un movimiento que saca el total de su tipo del rango de money es ErrInvalidAmount.
func (l *Ledger) Append(m entity.CashMovement) error {
	if err := ValidateMovement(m.Type, m.Amount, m.Reason); err != nil {
		return err
	}
	if _, err := l.total(m.Type).AddChecked(m.Amount); err != nil {
		return errors.Join(domain.ErrInvalidAmount, err)
	}
	l.movements = append(l.movements, m)
	return nil
}

// Movements copia de los movimientos en orden de inserción.
func (l *Ledger) Movements() []entity.CashMovement {
	return append([]entity.CashMovement(nil), l.movements...)
}

// Len cantidad de movimientos.
func (l *Ledger) Len() int { return len(l.movements) }

// TotalIn suma de ingresos.
func (l *Ledger) TotalIn() money.Money { return l.total(entity.MovementTypeIN) }

// TotalOut suma de egresos.
func (l *Ledger) TotalOut() money.Money { return l.total(entity.MovementTypeOUT) }

func (l *Ledger) total(movementType string) money.Money {
	total := money.Zero
	for _, m := range l.movements {
		if m.Type == movementType {
			total = total.Add(m.Amount)
		}
	}
	return total
}
