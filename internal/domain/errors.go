package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// Errores del ciclo de vida del turno de caja.
	ErrInvalidAmount        = errors.New("monto inválido")
	ErrInvalidMovement      = errors.New("movimiento de caja inválido")
	ErrInvalidPaymentMethod = errors.New("medio de pago inválido")
	ErrShiftNotActive       = errors.New("el turno no existe o no está abierto")
	ErrShiftAlreadyOpen     = errors.New("ya existe un turno abierto para esta caja")
	ErrShiftAlreadyClosed   = errors.New("el turno ya fue cerrado")
	ErrMissingActor         = errors.New("no se pudo determinar el usuario que ejecuta la operación")

	// Reintentables: el estado persistido no cambió.
	ErrPersistenceFailure = errors.New("fallo de persistencia")
	ErrShiftBusy          = errors.New("el turno está siendo modificado por otra operación")
)

// OpError agrega contexto (operación, turno, caja) a un error de dominio.
// errors.Is sigue funcionando contra el sentinel envuelto.
type OpError struct {
	Op         string
	ShiftID    string
	RegisterID string
	Reason     string
	Err        error
}

func (e *OpError) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	if e.ShiftID != "" {
		msg += " (turno " + e.ShiftID + ")"
	} else if e.RegisterID != "" {
		msg += " (caja " + e.RegisterID + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// NewOpError construye un OpError. reason es opcional y admite formato.
func NewOpError(op, shiftID string, err error, reason string, args ...any) *OpError {
	if len(args) > 0 {
		reason = fmt.Sprintf(reason, args...)
	}
	return &OpError{Op: op, ShiftID: shiftID, Err: err, Reason: reason}
}

// IsRetryable indica si el llamador puede reintentar la operación completa.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailure) || errors.Is(err, ErrShiftBusy)
}

// IsClientError indica un error de validación o de estado atribuible al llamador.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidMovement) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrShiftNotActive) ||
		errors.Is(err, ErrShiftAlreadyOpen) ||
		errors.Is(err, ErrShiftAlreadyClosed) ||
		errors.Is(err, ErrMissingActor)
}
