package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Caja-api/internal/domain/cashdrawer"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// OpenShiftRequest apertura de turno. El actor sale del token.
type OpenShiftRequest struct {
	StartingCash *decimal.Decimal `json:"starting_cash" swaggertype:"string" example:"100.00"`
}

// PostPaymentRequest tramo de pago de una venta o devolución.
type PostPaymentRequest struct {
	PaymentMethod string           `json:"payment_method" validate:"max=32"`
	Amount        *decimal.Decimal `json:"amount" swaggertype:"string" example:"20.00"`
	RequestID     string           `json:"request_id" validate:"omitempty,max=128"`
}

// CashMovementRequest ingreso o egreso manual.
type CashMovementRequest struct {
	Type      string           `json:"type" validate:"max=8"`
	Amount    *decimal.Decimal `json:"amount" swaggertype:"string" example:"20.00"`
	Reason    string           `json:"reason" validate:"max=255"`
	RequestID string           `json:"request_id" validate:"omitempty,max=128"`
}

// CloseShiftRequest cierre con el efectivo contado.
type CloseShiftRequest struct {
	CountedCash *decimal.Decimal `json:"counted_cash" swaggertype:"string" example:"185.00"`
	Notes       string           `json:"notes" validate:"max=500"`
}

// ListShiftsRequest filtros del listado.
type ListShiftsRequest struct {
	RegisterID string `query:"register_id" validate:"omitempty,max=64"`
	Status     string `query:"status" validate:"omitempty,oneof=OPEN CLOSED"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int    `query:"offset" validate:"min=0"`
}

// Page normaliza la paginación.
func (r ListShiftsRequest) Page() PageRequest {
	p := PageRequest{Limit: r.Limit, Offset: r.Offset}
	p.DefaultPage()
	return p
}

// CashMovementResponse movimiento del libro de caja.
type CashMovementResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount" swaggertype:"string" example:"20.00"`
	Reason    string    `json:"reason"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
}

// ShiftResponse estado completo del turno.
type ShiftResponse struct {
	ID            string                 `json:"id"`
	RegisterID    string                 `json:"register_id"`
	UserID        string                 `json:"user_id"`
	UserName      string                 `json:"user_name,omitempty"`
	Status        string                 `json:"status"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`
	StartingCash  string                 `json:"starting_cash" swaggertype:"string" example:"100.00"`
	CashSales     string                 `json:"cash_sales"`
	CardSales     string                 `json:"card_sales"`
	DigitalSales  string                 `json:"digital_sales"`
	CountedCash   *string                `json:"counted_cash,omitempty"`
	ExpectedCash  *string                `json:"expected_cash,omitempty"`
	Difference    *string                `json:"difference,omitempty"`
	VarianceLevel string                 `json:"variance_level,omitempty"`
	ClosedBy      string                 `json:"closed_by,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
	CashMovements []CashMovementResponse `json:"cash_movements"`
	PostingCount  int                    `json:"posting_count"`
	Version       int64                  `json:"version"`
}

// ShiftListResponse página de cabeceras de turno.
type ShiftListResponse struct {
	Items []ShiftResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// SummaryResponse vista de billetera.
type SummaryResponse struct {
	ShiftID       string  `json:"shift_id"`
	RegisterID    string  `json:"register_id"`
	Status        string  `json:"status"`
	StartingCash  string  `json:"starting_cash" swaggertype:"string" example:"100.00"`
	CashSales     string  `json:"cash_sales"`
	CardSales     string  `json:"card_sales"`
	DigitalSales  string  `json:"digital_sales"`
	TotalSales    string  `json:"total_sales"`
	TotalIn       string  `json:"total_in"`
	TotalOut      string  `json:"total_out"`
	ExpectedCash  string  `json:"expected_cash"`
	CountedCash   *string `json:"counted_cash,omitempty"`
	Difference    *string `json:"difference,omitempty"`
	VarianceLevel string  `json:"variance_level,omitempty"`
	MovementCount int     `json:"movement_count"`
	PostingCount  int     `json:"posting_count"`
}

// AuditEntryResponse registro de auditoría.
type AuditEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	At        time.Time `json:"at"`
	Amount    string    `json:"amount" swaggertype:"string" example:"20.00"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// ToShiftResponse mapea la entidad a la respuesta HTTP.
func ToShiftResponse(s *entity.Shift) ShiftResponse {
	movs := make([]CashMovementResponse, 0, len(s.CashMovements))
	for _, m := range s.CashMovements {
		movs = append(movs, ToMovementResponse(m))
	}
	return ShiftResponse{
		ID:            s.ID,
		RegisterID:    s.RegisterID,
		UserID:        s.UserID,
		UserName:      s.UserName,
		Status:        s.Status,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		StartingCash:  s.StartingCash.String(),
		CashSales:     s.CashSales.String(),
		CardSales:     s.CardSales.String(),
		DigitalSales:  s.DigitalSales.String(),
		CountedCash:   moneyPtr(s.CountedCash),
		ExpectedCash:  moneyPtr(s.ExpectedCash),
		Difference:    moneyPtr(s.Difference),
		VarianceLevel: s.VarianceLevel,
		ClosedBy:      s.ClosedByID,
		Notes:         s.CloseNotes,
		CashMovements: movs,
		PostingCount:  len(s.Postings),
		Version:       s.Version,
	}
}

// ToMovementResponse mapea un movimiento.
func ToMovementResponse(m entity.CashMovement) CashMovementResponse {
	return CashMovementResponse{
		ID:        m.ID,
		Type:      m.Type,
		Amount:    m.Amount.String(),
		Reason:    m.Reason,
		RequestID: m.RequestID,
		Timestamp: m.Timestamp,
		UserID:    m.UserID,
		UserName:  m.UserName,
	}
}

// ToSummaryResponse mapea el resumen de billetera.
func ToSummaryResponse(s cashdrawer.Summary) SummaryResponse {
	return SummaryResponse{
		ShiftID:       s.ShiftID,
		RegisterID:    s.RegisterID,
		Status:        s.Status,
		StartingCash:  s.StartingCash.String(),
		CashSales:     s.CashSales.String(),
		CardSales:     s.CardSales.String(),
		DigitalSales:  s.DigitalSales.String(),
		TotalSales:    s.TotalSales.String(),
		TotalIn:       s.TotalIn.String(),
		TotalOut:      s.TotalOut.String(),
		ExpectedCash:  s.ExpectedCash.String(),
		CountedCash:   moneyPtr(s.CountedCash),
		Difference:    moneyPtr(s.Difference),
		VarianceLevel: s.VarianceLevel,
		MovementCount: s.MovementCount,
		PostingCount:  s.PostingCount,
	}
}

// ToAuditResponse mapea el historial de auditoría.
func ToAuditResponse(entries []*entity.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			At:        e.At,
			Amount:    e.Amount.String(),
			Detail:    e.Detail,
			RequestID: e.RequestID,
		})
	}
	return out
}

func moneyPtr(m *money.Money) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}
