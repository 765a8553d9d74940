package http

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Caja-api/internal/application/dto"
	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/money"
)

var validate = validator.New()

// bindAndValidate parsea el body JSON y aplica las reglas `validate`.
// Devuelve false si ya escribió la respuesta 400; el llamador debe retornar de inmediato.
func bindAndValidate(c *fiber.Ctx, op, shiftID string, req interface{}) bool {
	if err := c.BodyParser(req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:      "INVALID_BODY",
			Message:   "cuerpo inválido: " + err.Error(),
			ShiftID:   shiftID,
			Operation: op,
		})
		return false
	}
	return validateStruct(c, op, shiftID, req)
}

// bindQuery igual que bindAndValidate pero sobre la query string.
func bindQuery(c *fiber.Ctx, op string, req interface{}) bool {
	if err := c.QueryParser(req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:      "INVALID_QUERY",
			Message:   "parámetros inválidos: " + err.Error(),
			Operation: op,
		})
		return false
	}
	return validateStruct(c, op, "", req)
}

func validateStruct(c *fiber.Ctx, op, shiftID string, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	msg := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field())+":"+fe.Tag())
		}
		msg = "datos inválidos: " + strings.Join(fields, ", ")
	}
	_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Code:      "VALIDATION",
		Message:   msg,
		ShiftID:   shiftID,
		Operation: op,
	})
	return false
}

// toMoney convierte el decimal del request a Money; más de dos decimales es ErrInvalidAmount.
func toMoney(d *decimal.Decimal) (money.Money, error) {
	if d == nil {
		return money.Zero, domain.ErrInvalidAmount
	}
	m, err := money.FromDecimal(*d)
	if err != nil {
		return money.Zero, errors.Join(domain.ErrInvalidAmount, err)
	}
	return m, nil
}
