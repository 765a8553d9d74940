package http

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Caja-api/internal/application/dto"
	"github.com/jhoicas/Caja-api/internal/application/shift"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
)

// ReportGenerator genera el PDF del turno (reporte X abierto, Z cerrado).
type ReportGenerator interface {
	GenerateShiftReport(ctx context.Context, s *entity.Shift) ([]byte, error)
}

// ShiftHandler maneja las peticiones HTTP del turno de caja (protegido).
type ShiftHandler struct {
	mgr    *shift.Manager
	report ReportGenerator
}

// NewShiftHandler construye el handler. report puede ser nil: el endpoint responde 404.
func NewShiftHandler(mgr *shift.Manager, report ReportGenerator) *ShiftHandler {
	return &ShiftHandler{mgr: mgr, report: report}
}

// Open godoc
// @Summary      Abrir turno
// @Description  Abre un turno en la caja con el fondo inicial. Solo un turno OPEN por caja.
// @Tags         shifts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        registerID  path      string                true  "Identificador de la caja"
// @Param        body        body      dto.OpenShiftRequest  true  "starting_cash (>= 0, máximo 2 decimales)"
// @Success      201         {object}  dto.ShiftResponse
// @Failure      400         {object}  dto.ErrorResponse
// @Failure      401         {object}  dto.ErrorResponse
// @Failure      403         {object}  dto.ErrorResponse
// @Failure      409         {object}  dto.ErrorResponse
// @Failure      503         {object}  dto.ErrorResponse
// @Router       /api/registers/{registerID}/shifts [post]
func (h *ShiftHandler) Open(c *fiber.Ctx) error {
	registerID := c.Params("registerID")
	var in dto.OpenShiftRequest
	if !bindAndValidate(c, shift.OpOpen, "", &in) {
		return nil
	}
	starting, err := toMoney(in.StartingCash)
	if err != nil {
		return writeError(c, shift.OpOpen, "", err)
	}
	s, err := h.mgr.Open(c.UserContext(), shift.OpenInput{
		RegisterID:   registerID,
		StartingCash: starting,
		Actor:        actor(c),
	})
	if err != nil {
		return writeError(c, shift.OpOpen, "", err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToShiftResponse(s))
}

// Active godoc
// @Summary      Turno abierto de la caja
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        registerID  path      string  true  "Identificador de la caja"
// @Success      200         {object}  dto.ShiftResponse
// @Failure      401         {object}  dto.ErrorResponse
// @Failure      404         {object}  dto.ErrorResponse
// @Router       /api/registers/{registerID}/shifts/active [get]
func (h *ShiftHandler) Active(c *fiber.Ctx) error {
	s, err := h.mgr.GetActive(c.UserContext(), c.Params("registerID"))
	if err != nil {
		return writeError(c, "getActive", "", err)
	}
	if s == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la caja no tiene turno abierto"})
	}
	return c.JSON(dto.ToShiftResponse(s))
}

// List godoc
// @Summary      Listar turnos
// @Description  Cabeceras de turno, más recientes primero.
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        register_id  query     string  false  "Filtrar por caja"
// @Param        status       query     string  false  "OPEN o CLOSED"  Enums(OPEN, CLOSED)
// @Param        limit        query     int     false  "Tamaño de página (1-100, por defecto 20)"
// @Param        offset       query     int     false  "Desplazamiento"
// @Success      200          {object}  dto.ShiftListResponse
// @Failure      400          {object}  dto.ErrorResponse
// @Failure      401          {object}  dto.ErrorResponse
// @Router       /api/shifts [get]
func (h *ShiftHandler) List(c *fiber.Ctx) error {
	var in dto.ListShiftsRequest
	if !bindQuery(c, "list", &in) {
		return nil
	}
	page := in.Page()
	list, err := h.mgr.List(c.UserContext(), repository.ShiftFilter{
		RegisterID: in.RegisterID,
		Status:     in.Status,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return writeError(c, "list", "", err)
	}
	items := make([]dto.ShiftResponse, 0, len(list))
	for _, s := range list {
		items = append(items, dto.ToShiftResponse(s))
	}
	return c.JSON(dto.ShiftListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}})
}

// Get godoc
// @Summary      Obtener turno
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del turno"
// @Success      200  {object}  dto.ShiftResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/shifts/{id} [get]
func (h *ShiftHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	s, err := h.mgr.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, "get", id, err)
	}
	return c.JSON(dto.ToShiftResponse(s))
}

// Summary godoc
// @Summary      Resumen de billetera
// @Description  Totales por medio de pago, ingresos, egresos y efectivo esperado, sobre una sola lectura del turno.
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del turno"
// @Success      200  {object}  dto.SummaryResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/summary [get]
func (h *ShiftHandler) Summary(c *fiber.Ctx) error {
	id := c.Params("id")
	sum, err := h.mgr.GetSummary(c.UserContext(), id)
	if err != nil {
		return writeError(c, shift.OpSummary, id, err)
	}
	return c.JSON(dto.ToSummaryResponse(sum))
}

// PostPayment godoc
// @Summary      Registrar cobro
// @Description  Suma un tramo de pago al acumulador del medio. Monto negativo = devolución. request_id repetido no se aplica dos veces.
// @Tags         shifts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "ID del turno"
// @Param        body  body      dto.PostPaymentRequest  true  "payment_method (cash, card, digital), amount, request_id"
// @Success      200   {object}  dto.ShiftResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/payments [post]
func (h *ShiftHandler) PostPayment(c *fiber.Ctx) error {
	id := c.Params("id")
	var in dto.PostPaymentRequest
	if !bindAndValidate(c, shift.OpPostPayment, id, &in) {
		return nil
	}
	amount, err := toMoney(in.Amount)
	if err != nil {
		return writeError(c, shift.OpPostPayment, id, err)
	}
	s, err := h.mgr.PostSalePayment(c.UserContext(), shift.PostPaymentInput{
		ShiftID:   id,
		Method:    in.PaymentMethod,
		Amount:    amount,
		RequestID: in.RequestID,
		Actor:     actor(c),
	})
	if err != nil {
		return writeError(c, shift.OpPostPayment, id, err)
	}
	return c.JSON(dto.ToShiftResponse(s))
}

// AddMovement godoc
// @Summary      Registrar movimiento de efectivo
// @Description  Ingreso (IN) o egreso (OUT) manual con motivo obligatorio.
// @Tags         shifts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                   true  "ID del turno"
// @Param        body  body      dto.CashMovementRequest  true  "type (IN, OUT), amount (> 0), reason, request_id"
// @Success      201   {object}  dto.ShiftResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/movements [post]
func (h *ShiftHandler) AddMovement(c *fiber.Ctx) error {
	id := c.Params("id")
	var in dto.CashMovementRequest
	if !bindAndValidate(c, shift.OpAddMovement, id, &in) {
		return nil
	}
	amount, err := toMoney(in.Amount)
	if err != nil {
		return writeError(c, shift.OpAddMovement, id, err)
	}
	s, err := h.mgr.AddCashMovement(c.UserContext(), shift.MovementInput{
		ShiftID:   id,
		Type:      in.Type,
		Amount:    amount,
		Reason:    in.Reason,
		RequestID: in.RequestID,
		Actor:     actor(c),
	})
	if err != nil {
		return writeError(c, shift.OpAddMovement, id, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToShiftResponse(s))
}

// Movements godoc
// @Summary      Libro de movimientos
// @Description  Movimientos manuales en orden de inserción.
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del turno"
// @Success      200  {array}   dto.CashMovementResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/movements [get]
func (h *ShiftHandler) Movements(c *fiber.Ctx) error {
	id := c.Params("id")
	movs, err := h.mgr.Movements(c.UserContext(), id)
	if err != nil {
		return writeError(c, "movements", id, err)
	}
	out := make([]dto.CashMovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, dto.ToMovementResponse(m))
	}
	return c.JSON(out)
}

// Close godoc
// @Summary      Cerrar turno
// @Description  Cierra el turno con el efectivo contado y fija esperado, diferencia y nivel de desvío.
// @Tags         shifts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                 true  "ID del turno"
// @Param        body  body      dto.CloseShiftRequest  true  "counted_cash (>= 0), notes"
// @Success      200   {object}  dto.ShiftResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/close [post]
func (h *ShiftHandler) Close(c *fiber.Ctx) error {
	id := c.Params("id")
	var in dto.CloseShiftRequest
	if !bindAndValidate(c, shift.OpClose, id, &in) {
		return nil
	}
	counted, err := toMoney(in.CountedCash)
	if err != nil {
		return writeError(c, shift.OpClose, id, err)
	}
	s, err := h.mgr.Close(c.UserContext(), shift.CloseInput{
		ShiftID:     id,
		CountedCash: counted,
		Notes:       in.Notes,
		Actor:       actor(c),
	})
	if err != nil {
		return writeError(c, shift.OpClose, id, err)
	}
	return c.JSON(dto.ToShiftResponse(s))
}

// Audit godoc
// @Summary      Auditoría del turno
// @Tags         shifts
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del turno"
// @Success      200  {array}   dto.AuditEntryResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/audit [get]
func (h *ShiftHandler) Audit(c *fiber.Ctx) error {
	id := c.Params("id")
	entries, err := h.mgr.AuditTrail(c.UserContext(), id)
	if err != nil {
		return writeError(c, "audit", id, err)
	}
	return c.JSON(dto.ToAuditResponse(entries))
}

// Report godoc
// @Summary      Reporte PDF del turno
// @Description  Reporte X si el turno está abierto, Z si está cerrado.
// @Tags         shifts
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path      string  true  "ID del turno"
// @Success      200  {file}    binary
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/shifts/{id}/report [get]
func (h *ShiftHandler) Report(c *fiber.Ctx) error {
	id := c.Params("id")
	if h.report == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "reporte no disponible"})
	}
	s, err := h.mgr.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, "report", id, err)
	}
	pdf, err := h.report.GenerateShiftReport(c.UserContext(), s)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Code: "REPORT_FAILED", Message: "no se pudo generar el reporte", ShiftID: id, Operation: "report",
		})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=turno-%s.pdf", s.ID))
	return c.Send(pdf)
}
