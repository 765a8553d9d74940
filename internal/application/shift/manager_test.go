package shift_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Caja-api/internal/application/shift"
	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
	"github.com/jhoicas/Caja-api/internal/infrastructure/memory"
)

var (
	cajero     = entity.Actor{ID: "u-1", Name: "Ana"}
	supervisor = entity.Actor{ID: "u-2", Name: "Luis"}
	fixedNow   = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
)

func newManager(t *testing.T, mutate ...func(*shift.Config)) (*shift.Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := shift.DefaultConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	var seq atomic.Int64
	m := shift.NewManager(store, store.Shifts(), store.Audit(), cfg,
		shift.WithClock(func() time.Time { return fixedNow }),
		shift.WithIDGenerator(func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }),
	)
	return m, store
}

func open(t *testing.T, m *shift.Manager, starting string) *entity.Shift {
	t.Helper()
	s, err := m.Open(context.Background(), shift.OpenInput{
		RegisterID: "caja-1", StartingCash: money.MustParse(starting), Actor: cajero,
	})
	require.NoError(t, err)
	return s
}

func post(t *testing.T, m *shift.Manager, shiftID, method, amount string) *entity.Shift {
	t.Helper()
	s, err := m.PostSalePayment(context.Background(), shift.PostPaymentInput{
		ShiftID: shiftID, Method: method, Amount: money.MustParse(amount), Actor: cajero,
	})
	require.NoError(t, err)
	return s
}

func move(m *shift.Manager, shiftID, typ, amount, reason string) (*entity.Shift, error) {
	return m.AddCashMovement(context.Background(), shift.MovementInput{
		ShiftID: shiftID, Type: typ, Amount: money.MustParse(amount), Reason: reason, Actor: cajero,
	})
}

// Flujo completo: apertura, ventas, movimientos, cierre con faltante y rechazo posterior.
func TestManager_FlujoCompletoDeTurno(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	s := open(t, m, "100.00")
	assert.Equal(t, entity.ShiftStatusOpen, s.Status)
	assert.Equal(t, "caja-1", s.RegisterID)
	assert.Equal(t, cajero.ID, s.UserID)

	post(t, m, s.ID, entity.PaymentMethodCash, "20.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "30.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "10.00")

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", sum.CashSales.String())
	assert.Equal(t, "160.00", sum.ExpectedCash.String())

	_, err = move(m, s.ID, entity.MovementTypeIN, "50.00", "change")
	require.NoError(t, err)
	_, err = move(m, s.ID, entity.MovementTypeOUT, "20.00", "tip payout")
	require.NoError(t, err)

	sum, err = m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "190.00", sum.ExpectedCash.String())
	assert.Equal(t, 2, sum.MovementCount)

	closed, err := m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("185.00"), Actor: supervisor})
	require.NoError(t, err)
	assert.Equal(t, entity.ShiftStatusClosed, closed.Status)
	require.NotNil(t, closed.Difference)
	assert.Equal(t, "-5.00", closed.Difference.String())
	assert.Equal(t, "190.00", closed.ExpectedCash.String())
	assert.Equal(t, "185.00", closed.CountedCash.String())
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, supervisor.ID, closed.ClosedByID)
	assert.Equal(t, entity.VarianceWarning, closed.VarianceLevel)

	before, err := m.Get(ctx, s.ID)
	require.NoError(t, err)

	_, err = move(m, s.ID, entity.MovementTypeIN, "10.00", "late entry")
	assert.ErrorIs(t, err, domain.ErrShiftNotActive)

	after, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestManager_AperturaConFondoNegativo(t *testing.T) {
	m, store := newManager(t)
	_, err := m.Open(context.Background(), shift.OpenInput{
		RegisterID: "caja-1", StartingCash: money.MustParse("-5.00"), Actor: cajero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	list, err := store.Shifts().List(context.Background(), repository.ShiftFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_AperturaConFondoCero(t *testing.T) {
	m, _ := newManager(t)
	s := open(t, m, "0")
	assert.True(t, s.StartingCash.IsZero())
}

func TestManager_SegundaAperturaEnMismaCaja(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	first := open(t, m, "100.00")

	_, err := m.Open(ctx, shift.OpenInput{RegisterID: "caja-1", StartingCash: money.Zero, Actor: supervisor})
	assert.ErrorIs(t, err, domain.ErrShiftAlreadyOpen)

	// otra caja sí puede abrir
	other, err := m.Open(ctx, shift.OpenInput{RegisterID: "caja-2", StartingCash: money.Zero, Actor: supervisor})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	// al cerrar la primera se puede volver a abrir
	_, err = m.Close(ctx, shift.CloseInput{ShiftID: first.ID, CountedCash: money.MustParse("100.00"), Actor: cajero})
	require.NoError(t, err)
	_, err = m.Open(ctx, shift.OpenInput{RegisterID: "caja-1", StartingCash: money.Zero, Actor: cajero})
	require.NoError(t, err)

	active, err := m.GetActive(ctx, "caja-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.NotEqual(t, first.ID, active.ID)
}

func TestManager_AperturaSinActor(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Open(context.Background(), shift.OpenInput{RegisterID: "caja-1", StartingCash: money.Zero})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
}

func TestManager_CobrosPorMedioDePago(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "50.00")

	post(t, m, s.ID, entity.PaymentMethodCard, "80.00")
	post(t, m, s.ID, entity.PaymentMethodDigital, "15.50")
	post(t, m, s.ID, entity.PaymentMethodCash, "10.00")

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.00", sum.CardSales.String())
	assert.Equal(t, "15.50", sum.DigitalSales.String())
	assert.Equal(t, "10.00", sum.CashSales.String())
	assert.Equal(t, "105.50", sum.TotalSales.String())
	// tarjeta y digital no afectan el efectivo esperado
	assert.Equal(t, "60.00", sum.ExpectedCash.String())
	assert.Equal(t, 3, sum.PostingCount)
}

func TestManager_CobroInvalido(t *testing.T) {
	m, _ := newManager(t)
	s := open(t, m, "0")

	cases := []struct {
		name   string
		method string
		amount string
		want   error
	}{
		{"medio desconocido", "cheque", "10.00", domain.ErrInvalidPaymentMethod},
		{"monto cero", entity.PaymentMethodCash, "0", domain.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.PostSalePayment(context.Background(), shift.PostPaymentInput{
				ShiftID: s.ID, Method: tc.method, Amount: money.MustParse(tc.amount), Actor: cajero,
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestManager_DevolucionDescuentaAcumulador(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "100.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "40.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "-15.00")

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", sum.CashSales.String())
	assert.Equal(t, "125.00", sum.ExpectedCash.String())

	// una devolución mayor que lo vendido en el turno también se aplica
	post(t, m, s.ID, entity.PaymentMethodCash, "-30.00")
	sum, err = m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "-5.00", sum.CashSales.String())
	assert.Equal(t, "95.00", sum.ExpectedCash.String())
}

// Devolución en efectivo de una compra hecha en un turno anterior.
func TestManager_DevolucionComoPrimerCobroDelTurno(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "50.00")

	got := post(t, m, s.ID, entity.PaymentMethodCash, "-20.00")
	assert.Equal(t, "-20.00", got.CashSales.String())
	require.Len(t, got.Postings, 1)

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "-20.00", sum.CashSales.String())
	assert.Equal(t, "-20.00", sum.TotalSales.String())
	assert.Equal(t, "30.00", sum.ExpectedCash.String())

	closed, err := m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("30.00"), Actor: cajero})
	require.NoError(t, err)
	assert.True(t, closed.Difference.IsZero())
}

func TestManager_AcumuladorFueraDeRango(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "0")
	post(t, m, s.ID, entity.PaymentMethodCard, "10000000000000.00")

	_, err := m.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCard, Amount: money.MustParse("0.01"), Actor: cajero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.ErrorIs(t, err, money.ErrOutOfRange)
	assert.False(t, domain.IsRetryable(err))

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000000000000.00", sum.CardSales.String())
	assert.Equal(t, 1, sum.PostingCount)
}

func TestManager_ModoEstrictoRechazaNegativos(t *testing.T) {
	m, _ := newManager(t, func(c *shift.Config) { c.SignedPostings = false })
	s := open(t, m, "100.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "40.00")

	_, err := m.PostSalePayment(context.Background(), shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCash, Amount: money.MustParse("-5.00"), Actor: cajero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestManager_CobroIdempotente(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "0")

	in := shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCash, Amount: money.MustParse("20.00"),
		RequestID: "venta-77/pago-1", Actor: cajero,
	}
	first, err := m.PostSalePayment(ctx, in)
	require.NoError(t, err)
	second, err := m.PostSalePayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, "20.00", second.CashSales.String())
	assert.Len(t, second.Postings, 1)

	trail, err := m.AuditTrail(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 2) // apertura + un cobro
}

func TestManager_MovimientoIdempotente(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "0")

	in := shift.MovementInput{
		ShiftID: s.ID, Type: entity.MovementTypeIN, Amount: money.MustParse("5.00"),
		Reason: "sencillo", RequestID: "mov-1", Actor: cajero,
	}
	_, err := m.AddCashMovement(ctx, in)
	require.NoError(t, err)
	_, err = m.AddCashMovement(ctx, in)
	require.NoError(t, err)

	movs, err := m.Movements(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 1)
}

func TestManager_MovimientoInvalido(t *testing.T) {
	m, _ := newManager(t)
	s := open(t, m, "10.00")

	cases := []struct {
		name   string
		typ    string
		amount string
		reason string
		want   error
	}{
		{"tipo desconocido", "TRANSFER", "5.00", "x", domain.ErrInvalidMovement},
		{"monto cero", entity.MovementTypeIN, "0", "x", domain.ErrInvalidAmount},
		{"monto negativo", entity.MovementTypeOUT, "-1.00", "x", domain.ErrInvalidAmount},
		{"sin motivo", entity.MovementTypeOUT, "1.00", "   ", domain.ErrInvalidMovement},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := move(m, s.ID, tc.typ, tc.amount, tc.reason)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	movs, err := m.Movements(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

// Un egreso mayor al efectivo esperado se acepta; el faltante aparece en el arqueo.
func TestManager_EgresoMayorAlEsperadoSeAcepta(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "10.00")
	_, err := move(m, s.ID, entity.MovementTypeOUT, "25.00", "pago proveedor")
	require.NoError(t, err)

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "-15.00", sum.ExpectedCash.String())
}

func TestManager_OperacionesSobreTurnoInexistente(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	_, err := m.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID: "nope", Method: entity.PaymentMethodCash, Amount: money.MustParse("1.00"), Actor: cajero,
	})
	assert.ErrorIs(t, err, domain.ErrShiftNotActive)

	_, err = move(m, "nope", entity.MovementTypeIN, "1.00", "x")
	assert.ErrorIs(t, err, domain.ErrShiftNotActive)

	_, err = m.Close(ctx, shift.CloseInput{ShiftID: "nope", CountedCash: money.Zero, Actor: cajero})
	assert.ErrorIs(t, err, domain.ErrShiftNotActive)

	_, err = m.GetSummary(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_CierreDobleRechazado(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "100.00")

	first, err := m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("100.00"), Actor: cajero})
	require.NoError(t, err)
	assert.Equal(t, "0.00", first.Difference.String())
	assert.Equal(t, entity.VarianceNormal, first.VarianceLevel)

	_, err = m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("50.00"), Actor: cajero})
	assert.ErrorIs(t, err, domain.ErrShiftAlreadyClosed)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.CountedCash.String())
	assert.Equal(t, first.EndTime, got.EndTime)

	_, err = m.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCard, Amount: money.MustParse("1.00"), Actor: cajero,
	})
	assert.ErrorIs(t, err, domain.ErrShiftNotActive)
}

func TestManager_CierreConContadoNegativo(t *testing.T) {
	m, _ := newManager(t)
	s := open(t, m, "100.00")
	_, err := m.Close(context.Background(), shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("-1.00"), Actor: cajero})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestManager_CierreConSobrante(t *testing.T) {
	m, _ := newManager(t)
	s := open(t, m, "100.00")
	closed, err := m.Close(context.Background(), shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("110.00"), Actor: cajero})
	require.NoError(t, err)
	assert.Equal(t, "10.00", closed.Difference.String())
	assert.Equal(t, entity.VarianceCritical, closed.VarianceLevel)
}

func TestManager_ResumenDeTurnoCerradoCoincideConCierre(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "100.00")
	post(t, m, s.ID, entity.PaymentMethodCash, "12.34")
	closed, err := m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("112.00"), Actor: cajero})
	require.NoError(t, err)

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, *closed.ExpectedCash, sum.ExpectedCash)
	assert.Equal(t, "-0.34", sum.Difference.String())
}

func TestManager_OperacionSinActorNoCambiaEstado(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "100.00")

	_, err := m.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCash, Amount: money.MustParse("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
	_, err = m.AddCashMovement(ctx, shift.MovementInput{
		ShiftID: s.ID, Type: entity.MovementTypeIN, Amount: money.MustParse("1.00"), Reason: "x",
	})
	assert.ErrorIs(t, err, domain.ErrMissingActor)
	_, err = m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.Zero})
	assert.ErrorIs(t, err, domain.ErrMissingActor)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Version, got.Version)
}

func TestManager_FalloDePersistenciaNoAplicaCambios(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	s := open(t, m, "100.00")

	store.FailNextCommit(errors.New("disco lleno"))
	_, err := m.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID: s.ID, Method: entity.PaymentMethodCash, Amount: money.MustParse("20.00"), Actor: cajero,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.True(t, domain.IsRetryable(err))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.CashSales.IsZero())
	assert.Equal(t, s.Version, got.Version)

	trail, err := m.AuditTrail(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)

	// el reintento se aplica normalmente
	post(t, m, s.ID, entity.PaymentMethodCash, "20.00")
}

func TestManager_FalloEnCierreDejaTurnoAbierto(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	s := open(t, m, "100.00")

	store.FailNextCommit(nil)
	_, err := m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("100.00"), Actor: cajero})
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	assert.Nil(t, got.EndTime)
}

func TestManager_AuditoriaRegistraActorYAccion(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "100.00")
	post(t, m, s.ID, entity.PaymentMethodCard, "10.00")
	_, err := move(m, s.ID, entity.MovementTypeOUT, "5.00", "cambio")
	require.NoError(t, err)
	_, err = m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("95.00"), Actor: supervisor})
	require.NoError(t, err)

	trail, err := m.AuditTrail(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	assert.Equal(t, entity.AuditActionOpen, trail[0].Action)
	assert.Equal(t, entity.AuditActionPayment, trail[1].Action)
	assert.Equal(t, entity.AuditActionMovement, trail[2].Action)
	assert.Equal(t, entity.AuditActionClose, trail[3].Action)
	assert.Equal(t, supervisor.ID, trail[3].ActorID)
	assert.Equal(t, fixedNow, trail[3].At)

	_, err = m.AuditTrail(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_ListFiltraPorCajaYEstado(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	a := open(t, m, "10.00")
	_, err := m.Close(ctx, shift.CloseInput{ShiftID: a.ID, CountedCash: money.MustParse("10.00"), Actor: cajero})
	require.NoError(t, err)
	_, err = m.Open(ctx, shift.OpenInput{RegisterID: "caja-2", StartingCash: money.Zero, Actor: cajero})
	require.NoError(t, err)

	all, err := m.List(ctx, repository.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	openOnly, err := m.List(ctx, repository.ShiftFilter{Status: entity.ShiftStatusOpen})
	require.NoError(t, err)
	require.Len(t, openOnly, 1)
	assert.Equal(t, "caja-2", openOnly[0].RegisterID)

	byRegister, err := m.List(ctx, repository.ShiftFilter{RegisterID: "caja-1"})
	require.NoError(t, err)
	require.Len(t, byRegister, 1)
	assert.Nil(t, byRegister[0].CashMovements)
}

// Cobros concurrentes sobre el mismo turno: ninguno se pierde.
func TestManager_CobrosConcurrentesNoSePierden(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	s := open(t, m, "0")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.PostSalePayment(ctx, shift.PostPaymentInput{
				ShiftID: s.ID, Method: entity.PaymentMethodCash, Amount: money.MustParse("1.00"),
				RequestID: fmt.Sprintf("req-%d", i), Actor: cajero,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := m.GetSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", sum.CashSales.String())
	assert.Equal(t, n, sum.PostingCount)
}

// Cierre y movimiento concurrentes: o el movimiento entra en el arqueo o se rechaza.
func TestManager_CierreYMovimientoConcurrentes(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctx := context.Background()
		m, _ := newManager(t)
		s := open(t, m, "100.00")

		var (
			wg       sync.WaitGroup
			moveErr  error
			closed   *entity.Shift
			closeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, moveErr = move(m, s.ID, entity.MovementTypeIN, "10.00", "sencillo")
		}()
		go func() {
			defer wg.Done()
			closed, closeErr = m.Close(ctx, shift.CloseInput{ShiftID: s.ID, CountedCash: money.MustParse("110.00"), Actor: cajero})
		}()
		wg.Wait()

		require.NoError(t, closeErr)
		if moveErr == nil {
			assert.Equal(t, "110.00", closed.ExpectedCash.String())
			assert.Len(t, closed.CashMovements, 1)
		} else {
			assert.ErrorIs(t, moveErr, domain.ErrShiftNotActive)
			assert.Equal(t, "100.00", closed.ExpectedCash.String())
			assert.Empty(t, closed.CashMovements)
		}
	}
}

// Aperturas concurrentes en la misma caja: exactamente una gana.
func TestManager_AperturasConcurrentesUnaGana(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	const n = 10
	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		already atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Open(ctx, shift.OpenInput{RegisterID: "caja-9", StartingCash: money.Zero, Actor: cajero})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrShiftAlreadyOpen):
				already.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), already.Load())
}
