package entity

// Roles válidos en los tokens.
const (
	RoleAdmin       = "admin"
	RoleSupervisor  = "supervisor"
	RoleCajero      = "cajero"
	RoleIntegracion = "integracion" // sistema de ventas que publica cobros
)

// Actor usuario (o sistema) que ejecuta una operación; proviene del contexto de identidad.
type Actor struct {
	ID   string
	Name string
}

// Valid indica si el actor está identificado.
func (a Actor) Valid() bool { return a.ID != "" }
