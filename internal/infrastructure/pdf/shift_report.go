// Package pdf genera el reporte de turno de caja (reporte X con el turno abierto,
// reporte Z al cierre) con Maroto v2.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Negocio + Caja      │  REPORTE Z + Turno + Fecha   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  OPERADOR: apertura / cierre                                 │
//	│  VENTAS: Efectivo | Tarjeta | Digital | Total                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  MOVIMIENTOS: Hora | Tipo | Motivo | Usuario | Monto         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ARQUEO: Esperado / Contado / Diferencia + nivel             │
//	│  FOOTER: QR de verificación + firmas                         │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/Caja-api/internal/domain/cashdrawer"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/pkg/display"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary  = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray     = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWarning  = &props.Color{Red: 200, Green: 120, Blue: 0}
	colorCritical = &props.Color{Red: 180, Green: 20, Blue: 20}
)

// ShiftReportGenerator genera el PDF del turno.
type ShiftReportGenerator struct {
	business string
	fmt      *display.Formatter
	loc      *time.Location
}

// NewShiftReportGenerator construye el generador. loc nil = UTC.
func NewShiftReportGenerator(business string, f *display.Formatter, loc *time.Location) *ShiftReportGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &ShiftReportGenerator{business: business, fmt: f, loc: loc}
}

// GenerateShiftReport genera el PDF y devuelve sus bytes.
func (g *ShiftReportGenerator) GenerateShiftReport(_ context.Context, s *entity.Shift) ([]byte, error) {
	title := "REPORTE X (turno abierto)"
	if !s.IsOpen() {
		title = "REPORTE Z (cierre de caja)"
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title, true).
		WithAuthor(g.business, true).
		Build()

	m := maroto.New(cfg)
	sum := cashdrawer.Summarize(s)

	m.AddRows(g.headerRow(s, title))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(g.operatorRow(s))
	m.AddRows(g.salesRow(sum))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(sectionTitle("MOVIMIENTOS DE CAJA"))
	if len(s.CashMovements) == 0 {
		m.AddRows(row.New(6).Add(col.New(12).Add(
			text.New("Sin movimientos manuales.", props.Text{Size: 8, Color: colorGray, Top: 1}),
		)))
	} else {
		m.AddRows(movementHeaderRow())
		m.AddRows(g.movementRows(s.CashMovements)...)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.reconciliationRow(s, sum))

	m.AddRows(line.NewRow(3))
	m.AddRows(g.footerRow(s))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar reporte de turno: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func (g *ShiftReportGenerator) headerRow(s *entity.Shift, title string) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(g.business, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
			text.New("Caja: "+s.RegisterID, props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(5).Add(
			text.New(title, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Top: 1}),
			text.New("Turno "+s.ID, props.Text{Size: 7, Align: align.Right, Top: 7}),
			text.New("Emitido: "+g.fmt.DateTime(time.Now(), g.loc), props.Text{Size: 8, Align: align.Right, Top: 12, Color: colorGray}),
		),
	)
}

func (g *ShiftReportGenerator) operatorRow(s *entity.Shift) core.Row {
	closing := "—"
	if s.EndTime != nil {
		closing = fmt.Sprintf("%s por %s", g.fmt.DateTime(*s.EndTime, g.loc), nonEmpty(s.ClosedByName, s.ClosedByID))
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("OPERADOR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("Apertura: %s por %s   |   Fondo inicial: %s",
				g.fmt.DateTime(s.StartTime, g.loc), nonEmpty(s.UserName, s.UserID), g.fmt.Money(s.StartingCash),
			), props.Text{Size: 8, Top: 6}),
			text.New("Cierre: "+closing, props.Text{Size: 8, Top: 10, Color: colorGray}),
		),
	)
}

func (g *ShiftReportGenerator) salesRow(sum cashdrawer.Summary) core.Row {
	cell := func(label string, m money.Money) core.Col {
		return col.New(3).Add(
			text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Center, Top: 1}),
			text.New(g.fmt.Money(m), props.Text{Size: 10, Align: align.Center, Top: 6}),
		)
	}
	return row.New(14).Add(
		cell("Efectivo", sum.CashSales),
		cell("Tarjeta", sum.CardSales),
		cell("Digital", sum.DigitalSales),
		cell("Total ventas", sum.TotalSales),
	)
}

func sectionTitle(s string) core.Row {
	return row.New(7).Add(col.New(12).Add(
		text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2}),
	))
}

func movementHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Align: a, Top: 1}))
	}
	return row.New(6).Add(
		h("Hora", 2, align.Left),
		h("Tipo", 1, align.Center),
		h("Motivo", 4, align.Left),
		h("Usuario", 2, align.Left),
		h("Monto", 3, align.Right),
	)
}

func (g *ShiftReportGenerator) movementRows(movs []entity.CashMovement) []core.Row {
	rows := make([]core.Row, 0, len(movs))
	for _, mv := range movs {
		kind := "Ingreso"
		amount := mv.Amount
		if mv.Type == entity.MovementTypeOUT {
			kind = "Egreso"
			amount = amount.Neg()
		}
		rows = append(rows, row.New(5).Add(
			col.New(2).Add(text.New(mv.Timestamp.In(g.loc).Format("15:04"), props.Text{Size: 8, Top: 0.5})),
			col.New(1).Add(text.New(kind, props.Text{Size: 8, Align: align.Center, Top: 0.5})),
			col.New(4).Add(text.New(mv.Reason, props.Text{Size: 8, Top: 0.5})),
			col.New(2).Add(text.New(nonEmpty(mv.UserName, mv.UserID), props.Text{Size: 8, Top: 0.5})),
			col.New(3).Add(text.New(g.fmt.Money(amount), props.Text{Size: 8, Align: align.Right, Top: 0.5})),
		))
	}
	return rows
}

func (g *ShiftReportGenerator) reconciliationRow(s *entity.Shift, sum cashdrawer.Summary) core.Row {
	label := func(v string) core.Component {
		return text.New(v, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(v string, c *props.Color) core.Component {
		return text.New(v, props.Text{Size: 9, Align: align.Right, Right: 1, Color: c})
	}

	counted, diff, level := "—", "—", "—"
	diffColor := colorGray
	if s.CountedCash != nil {
		counted = g.fmt.Money(*s.CountedCash)
	}
	if s.Difference != nil {
		diff = g.fmt.Money(*s.Difference)
		level = s.VarianceLevel
		switch s.VarianceLevel {
		case entity.VarianceWarning:
			diffColor = colorWarning
		case entity.VarianceCritical:
			diffColor = colorCritical
		default:
			diffColor = colorPrimary
		}
	}

	return row.New(34).Add(
		col.New(3).Add(
			text.New("ARQUEO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		),
		col.New(4).Add(
			label("Ingresos:"),
			label("Egresos:"),
			label("Efectivo esperado:"),
			label("Efectivo contado:"),
			label("Diferencia:"),
			label("Nivel de desvío:"),
		),
		col.New(5).Add(
			value(g.fmt.Money(sum.TotalIn), nil),
			value(g.fmt.Money(sum.TotalOut), nil),
			value(g.fmt.Money(sum.ExpectedCash), colorPrimary),
			value(counted, nil),
			value(diff, diffColor),
			value(level, diffColor),
		),
	)
}

func (g *ShiftReportGenerator) footerRow(s *entity.Shift) core.Row {
	qr := fmt.Sprintf("turno=%s;caja=%s;estado=%s;version=%d", s.ID, s.RegisterID, s.Status, s.Version)
	if s.Difference != nil {
		qr += ";diferencia=" + s.Difference.String()
	}
	notes := s.CloseNotes
	if notes == "" {
		notes = "Sin observaciones."
	}
	return row.New(40).Add(
		col.New(3).Add(code.NewQr(qr, props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Observaciones: "+notes, props.Text{Size: 8, Left: 3, Top: 2, Color: colorGray}),
			text.New("Firma cajero: ______________________", props.Text{Size: 9, Left: 3, Top: 20}),
			text.New("Firma supervisor: ______________________", props.Text{Size: 9, Left: 3, Top: 30}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
