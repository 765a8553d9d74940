package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Caja-api/internal/application/shift"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Manager   *shift.Manager
	Report    ReportGenerator
	JWTSecret string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	h := NewShiftHandler(deps.Manager, deps.Report)

	operators := RequireRole(entity.RoleCajero, entity.RoleSupervisor, entity.RoleAdmin)
	// el sistema de ventas también publica cobros
	posters := RequireRole(entity.RoleCajero, entity.RoleSupervisor, entity.RoleAdmin, entity.RoleIntegracion)
	supervisors := RequireRole(entity.RoleSupervisor, entity.RoleAdmin)

	registers := api.Group("/registers/:registerID/shifts")
	registers.Post("/", operators, h.Open)
	registers.Get("/active", operators, h.Active)

	shifts := api.Group("/shifts")
	shifts.Get("/", operators, h.List)
	shifts.Get("/:id", operators, h.Get)
	shifts.Get("/:id/summary", operators, h.Summary)
	shifts.Post("/:id/payments", posters, h.PostPayment)
	shifts.Post("/:id/movements", operators, h.AddMovement)
	shifts.Get("/:id/movements", operators, h.Movements)
	shifts.Post("/:id/close", operators, h.Close)
	shifts.Get("/:id/audit", supervisors, h.Audit)
	shifts.Get("/:id/report", operators, h.Report)
}
