package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	_ "github.com/jhoicas/Caja-api/docs"
	"github.com/jhoicas/Caja-api/internal/application/shift"
	"github.com/jhoicas/Caja-api/internal/domain/cashdrawer"
	"github.com/jhoicas/Caja-api/internal/domain/repository"
	"github.com/jhoicas/Caja-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/Caja-api/internal/infrastructure/pdf"
	"github.com/jhoicas/Caja-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Caja-api/internal/infrastructure/queue"
	"github.com/jhoicas/Caja-api/internal/infrastructure/sqlite"
	httpRouter "github.com/jhoicas/Caja-api/internal/interfaces/http"
	"github.com/jhoicas/Caja-api/pkg/config"
	"github.com/jhoicas/Caja-api/pkg/display"
	"github.com/jhoicas/Caja-api/pkg/logger"
)

// backend gateway de persistencia elegido por STORE_DRIVER.
type backend struct {
	tx     shift.TxRunner
	shifts repository.ShiftRepository
	audit  repository.AuditRepository
	closer func()
}

// @title                       Caja API
// @version                     1.0
// @description                 Turnos de caja: apertura, cobros por medio de pago, movimientos de efectivo y cierre con arqueo.
// @BasePath                    /
// @schemes                     http https
// @accept                      json
// @produce                     json
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Msg("iniciando aplicación")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("conexión al almacenamiento")
	}
	defer store.closer()

	thresholds := cashdrawer.DefaultThresholds()
	if d, err := decimal.NewFromString(cfg.Shift.WarnPct); err == nil {
		thresholds.WarnPct = d
	}
	if d, err := decimal.NewFromString(cfg.Shift.CriticalPct); err == nil {
		thresholds.CriticalPct = d
	}

	mgr := shift.NewManager(store.tx, store.shifts, store.audit, shift.Config{
		LockTimeout:    cfg.Shift.LockTimeout,
		SignedPostings: cfg.Shift.SignedPostings,
		Thresholds:     thresholds,
	}, shift.WithLogger(log.Component("shift")))

	// Cola de cobros publicada por ventas (opcional)
	var consumer *queue.Consumer
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("REDIS_URL inválida")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		consumer = queue.NewConsumer(rdb, mgr, queue.ConsumerConfig{
			Queue:       cfg.Redis.Queue,
			Workers:     cfg.Redis.Workers,
			MaxAttempts: cfg.Redis.MaxAttempts,
		}, log.Component("queue"))
		consumer.Start(ctx)
	}

	loc, err := time.LoadLocation(cfg.App.TimeZone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.App.TimeZone).Msg("zona horaria desconocida, se usa UTC")
		loc = time.UTC
	}
	// PDF: reporte X (turno abierto) y Z (cierre)
	reportGen := infrapdf.NewShiftReportGenerator(cfg.App.Business, display.New(cfg.Display.Locale, cfg.Display.Symbol), loc)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Caja API",
	}))

	app.Get("/health", health(cfg))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Manager:   mgr,
		Report:    reportGen,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// Los workers terminan el evento en curso y salen.
	cancel()
	if consumer != nil {
		consumer.Wait()
	}

	log.Info().Msg("aplicación detenida")
}

// health godoc
// @Summary      Estado del servicio
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func health(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "store": cfg.Store.Driver})
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{tx: s, shifts: s.Shifts(), audit: s.Audit(), closer: closeQuietly(s)}, nil
	case config.DriverMemory:
		s := memory.NewStore()
		return &backend{tx: s, shifts: s.Shifts(), audit: s.Audit(), closer: func() {}}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			tx:     postgres.NewTxRunner(pool),
			shifts: postgres.NewShiftRepository(pool),
			audit:  postgres.NewAuditRepository(pool),
			closer: pool.Close,
		}, nil
	}
}

func closeQuietly(c io.Closer) func() {
	return func() { _ = c.Close() }
}
