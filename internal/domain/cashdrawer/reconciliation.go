package cashdrawer

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// ExpectedCash efectivo que debería haber en la gaveta:
// fondo inicial + ventas en efectivo + ingresos - egresos.
// Es la única fórmula usada tanto por el resumen en vivo como por el cierre.
func ExpectedCash(s *entity.Shift) money.Money {
	l := NewLedger(s.CashMovements)
	return s.StartingCash.Add(s.CashSales).Add(l.TotalIn()).Sub(l.TotalOut())
}

// Difference contado - esperado. Positivo = sobrante, negativo = faltante.
func Difference(s *entity.Shift, counted money.Money) money.Money {
	return counted.Sub(ExpectedCash(s))
}

// Summary vista de billetera de un turno, calculada sobre una única instantánea.
type Summary struct {
	ShiftID       string
	RegisterID    string
	Status        string
	StartingCash  money.Money
	CashSales     money.Money
	CardSales     money.Money
	DigitalSales  money.Money
	TotalSales    money.Money
	TotalIn       money.Money
	TotalOut      money.Money
	ExpectedCash  money.Money
	MovementCount int
	PostingCount  int
	CountedCash   *money.Money
	Difference    *money.Money
	VarianceLevel string
}

// Summarize arma el resumen. En un turno cerrado ExpectedCash coincide con el
// valor congelado al cierre porque el estado ya no cambia.
func Summarize(s *entity.Shift) Summary {
	l := NewLedger(s.CashMovements)
	return Summary{
		ShiftID:       s.ID,
		RegisterID:    s.RegisterID,
		Status:        s.Status,
		StartingCash:  s.StartingCash,
		CashSales:     s.CashSales,
		CardSales:     s.CardSales,
		DigitalSales:  s.DigitalSales,
		TotalSales:    money.Sum(s.CashSales, s.CardSales, s.DigitalSales),
		TotalIn:       l.TotalIn(),
		TotalOut:      l.TotalOut(),
		ExpectedCash:  ExpectedCash(s),
		MovementCount: l.Len(),
		PostingCount:  len(s.Postings),
		CountedCash:   s.CountedCash,
		Difference:    s.Difference,
		VarianceLevel: s.VarianceLevel,
	}
}

// VarianceThresholds umbrales porcentuales de desvío (|diferencia| / esperado * 100).
type VarianceThresholds struct {
	WarnPct     decimal.Decimal
	CriticalPct decimal.Decimal
}

// DefaultThresholds normal <= 1%, warning <= 5%, critical > 5%.
func DefaultThresholds() VarianceThresholds {
	return VarianceThresholds{
		WarnPct:     decimal.NewFromInt(1),
		CriticalPct: decimal.NewFromInt(5),
	}
}

var hundred = decimal.NewFromInt(100)

// ClassifyVariance clasifica el desvío del arqueo.
func ClassifyVariance(diff, expected money.Money, th VarianceThresholds) string {
	if diff.IsZero() {
		return entity.VarianceNormal
	}
	if expected.IsZero() {
		return entity.VarianceCritical
	}
	pct := diff.Decimal().Abs().Div(expected.Decimal().Abs()).Mul(hundred)
	switch {
	case pct.LessThanOrEqual(th.WarnPct):
		return entity.VarianceNormal
	case pct.LessThanOrEqual(th.CriticalPct):
		return entity.VarianceWarning
	default:
		return entity.VarianceCritical
	}
}
