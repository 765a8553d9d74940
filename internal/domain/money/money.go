// Package money implementa el valor monetario de la caja en unidades menores (centavos).
// Nunca se acumula en punto flotante: toda la aritmética es entera y exacta.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale número de decimales de la moneda operativa.
const Scale = 2

// maxCents tope de rango (10^15 centavos) para montos individuales y acumuladores.
const maxCents = int64(1_000_000_000_000_000)

var (
	// ErrPrecision el monto trae más decimales que los que admite la moneda.
	ErrPrecision = errors.New("money: el monto excede la precisión de 2 decimales")
	// ErrOutOfRange el monto no cabe en el rango soportado.
	ErrOutOfRange = errors.New("money: monto fuera de rango")
)

// Money monto firmado en centavos.
type Money struct {
	cents int64
}

// Zero monto cero.
var Zero = Money{}

// FromCents construye un monto a partir de centavos.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// FromDecimal convierte un decimal a Money sin redondear.
// Devuelve ErrPrecision si el decimal tiene más de 2 decimales significativos.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return Zero, ErrPrecision
	}
	shifted := d.Shift(Scale)
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return Zero, ErrOutOfRange
	}
	c := bi.Int64()
	if c > maxCents || c < -maxCents {
		return Zero, ErrOutOfRange
	}
	return Money{cents: c}, nil
}

// Parse interpreta un string decimal ("160.00", "-5", "0.5").
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: %q no es un número: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse como Parse pero hace panic ante error. Solo para constantes y tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents devuelve el monto en centavos.
func (m Money) Cents() int64 { return m.cents }

// Decimal devuelve el monto como decimal con escala fija.
func (m Money) Decimal() decimal.Decimal { return decimal.New(m.cents, -Scale) }

// String formato canónico con 2 decimales, ej. "-5.00".
func (m Money) String() string { return m.Decimal().StringFixed(Scale) }

// Add y Sub no controlan el rango: con operandos dentro de ±maxCents el resultado
// siempre cabe en int64. Los totales que crecen con cada operación usan AddChecked.
func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }
func (m Money) Neg() Money        { return Money{cents: -m.cents} }

// AddChecked suma y devuelve ErrOutOfRange si el resultado sale de ±maxCents o desborda int64.
func (m Money) AddChecked(o Money) (Money, error) {
	r := m.cents + o.cents
	if (o.cents > 0 && r < m.cents) || (o.cents < 0 && r > m.cents) {
		return Zero, ErrOutOfRange
	}
	if r > maxCents || r < -maxCents {
		return Zero, ErrOutOfRange
	}
	return Money{cents: r}, nil
}

// SubChecked resta con el mismo control de rango que AddChecked.
func (m Money) SubChecked(o Money) (Money, error) {
	if o.cents == math.MinInt64 {
		return Zero, ErrOutOfRange
	}
	return m.AddChecked(o.Neg())
}

// Abs valor absoluto.
func (m Money) Abs() Money {
	if m.cents < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) IsZero() bool     { return m.cents == 0 }
func (m Money) IsNegative() bool { return m.cents < 0 }
func (m Money) IsPositive() bool { return m.cents > 0 }

// Cmp devuelve -1, 0 o 1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) LessThan(o Money) bool    { return m.cents < o.cents }
func (m Money) GreaterThan(o Money) bool { return m.cents > o.cents }

// Sum suma una lista de montos.
func Sum(ms ...Money) Money {
	var total int64
	for _, m := range ms {
		total += m.cents
	}
	return Money{cents: total}
}
