// Package display formatea montos y fechas para la vista del cajero (PDF, respuestas legibles).
package display

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// Formatter formateador atado a un locale y un símbolo de moneda.
type Formatter struct {
	p       *message.Printer
	symbol  string
	decimal string
}

// New construye el formateador. Un locale inválido cae en español.
func New(locale, symbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Spanish
	}
	p := message.NewPrinter(tag)
	// separador decimal del locale, tomado de un valor conocido
	sample := p.Sprintf("%.1f", 1.5)
	sep := "."
	if len(sample) == 3 {
		sep = sample[1:2]
	}
	return &Formatter{p: p, symbol: symbol, decimal: sep}
}

// Money formato exacto con separador de miles del locale, ej. "$ 1.234,56".
// No pasa por float: la parte entera y los centavos se formatean por separado.
func (f *Formatter) Money(m money.Money) string {
	cents := m.Cents()
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := cents / 100
	frac := cents % 100

	var b strings.Builder
	b.WriteString(sign)
	if f.symbol != "" {
		b.WriteString(f.symbol)
		b.WriteString(" ")
	}
	b.WriteString(f.p.Sprintf("%d", units))
	b.WriteString(f.decimal)
	if frac < 10 {
		b.WriteString("0")
	}
	b.WriteString(f.p.Sprintf("%d", frac))
	return b.String()
}

// DateTime fecha y hora en la zona indicada (nil = UTC).
func (f *Formatter) DateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006 15:04")
}
