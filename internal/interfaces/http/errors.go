package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Caja-api/internal/application/dto"
	"github.com/jhoicas/Caja-api/internal/domain"
)

// retryAfterSeconds sugerencia para errores reintentables.
const retryAfterSeconds = "1"

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorTable el orden importa: el primer sentinel que coincide gana.
var errorTable = []errorMapping{
	{domain.ErrInvalidAmount, fiber.StatusBadRequest, "INVALID_AMOUNT", "monto inválido"},
	{domain.ErrInvalidMovement, fiber.StatusBadRequest, "INVALID_MOVEMENT", "movimiento de caja inválido"},
	{domain.ErrInvalidPaymentMethod, fiber.StatusBadRequest, "INVALID_PAYMENT_METHOD", "medio de pago inválido"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION", "datos inválidos"},
	{domain.ErrMissingActor, fiber.StatusUnauthorized, "MISSING_ACTOR", "no se pudo identificar al usuario"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED", "no autorizado"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "acceso denegado"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "turno no encontrado"},
	{domain.ErrShiftNotActive, fiber.StatusConflict, "SHIFT_NOT_ACTIVE", "el turno no existe o no está abierto"},
	{domain.ErrShiftAlreadyOpen, fiber.StatusConflict, "SHIFT_ALREADY_OPEN", "ya existe un turno abierto para esta caja"},
	{domain.ErrShiftAlreadyClosed, fiber.StatusConflict, "SHIFT_ALREADY_CLOSED", "el turno ya fue cerrado"},
	{domain.ErrShiftBusy, fiber.StatusConflict, "SHIFT_BUSY", "el turno está ocupado, reintente"},
	{domain.ErrPersistenceFailure, fiber.StatusServiceUnavailable, "PERSISTENCE_FAILURE", "no se pudo guardar, reintente"},
}

// writeError traduce el error de dominio a la respuesta HTTP.
// op y shiftID se usan si el error no trae su propio contexto.
func writeError(c *fiber.Ctx, op, shiftID string, err error) error {
	body := dto.ErrorResponse{Code: "INTERNAL", Message: "error interno", ShiftID: shiftID, Operation: op}
	status := fiber.StatusInternalServerError

	var opErr *domain.OpError
	if errors.As(err, &opErr) {
		if opErr.Op != "" {
			body.Operation = opErr.Op
		}
		if opErr.ShiftID != "" {
			body.ShiftID = opErr.ShiftID
		}
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			status, body.Code, body.Message = m.status, m.code, m.message
			if opErr != nil && opErr.Reason != "" {
				body.Message += ": " + opErr.Reason
			}
			break
		}
	}

	if domain.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	}
	return c.Status(status).JSON(body)
}
