// Package queue alimenta el turno con los tramos de pago que publica el sistema de ventas.
//
// Los eventos viajan por una lista Redis (LPUSH/BRPOP). Cada evento lleva su clave de
// idempotencia, de modo que una entrega repetida no duplica el cobro. Los errores
// reintentables vuelven a la cola; los definitivos van a la cola de descarte dlq:<cola>.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Caja-api/internal/application/shift"
	"github.com/jhoicas/Caja-api/internal/domain"
	"github.com/jhoicas/Caja-api/internal/domain/entity"
	"github.com/jhoicas/Caja-api/internal/domain/money"
)

// DLQPrefix prefijo de la cola de descarte.
const DLQPrefix = "dlq:"

// PaymentEvent tramo de pago publicado por ventas. Amount es decimal en texto ("20.00", "-5.00").
type PaymentEvent struct {
	ShiftID   string `json:"shift_id"`
	Method    string `json:"payment_method"`
	Amount    string `json:"amount"`
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

// DLQEntry evento descartado con el motivo, para inspección manual.
type DLQEntry struct {
	Queue    string       `json:"queue"`
	Event    PaymentEvent `json:"event"`
	Reason   string       `json:"reason"`
	FailedAt string       `json:"failed_at"`
}

// Poster subconjunto del Manager que usa el consumidor.
type Poster interface {
	PostSalePayment(ctx context.Context, in shift.PostPaymentInput) (*entity.Shift, error)
}

// Publisher encola eventos de pago.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// NewPublisher construye el productor sobre la cola indicada.
func NewPublisher(rdb *redis.Client, queue string) *Publisher {
	return &Publisher{rdb: rdb, queue: queue}
}

// Publish encola el evento. Exige RequestID: sin clave no hay idempotencia en la entrega.
func (p *Publisher) Publish(ctx context.Context, evt PaymentEvent) error {
	if evt.RequestID == "" {
		return fmt.Errorf("publish: request_id requerido: %w", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.rdb.LPush(ctx, p.queue, data).Err()
}

// Outcome resultado de procesar un evento.
type Outcome int

const (
	Applied Outcome = iota
	Retry
	DeadLetter
)

// ConsumerConfig parámetros del pool de consumidores.
type ConsumerConfig struct {
	Queue       string
	Workers     int
	MaxAttempts int
	PopTimeout  time.Duration
	// HandleTimeout tope para terminar un evento ya extraído (aplicar, reencolar o
	// descartar), aun cuando el contexto del worker ya fue cancelado.
	HandleTimeout time.Duration
}

// listClient operaciones de lista Redis que usa el consumidor.
type listClient interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Consumer pool de workers que aplican eventos al turno.
type Consumer struct {
	rdb    listClient
	poster Poster
	cfg    ConsumerConfig
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewConsumer construye el consumidor.
func NewConsumer(rdb *redis.Client, poster Poster, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	return newConsumer(rdb, poster, cfg, log)
}

func newConsumer(rdb listClient, poster Poster, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 10 * time.Second
	}
	return &Consumer{rdb: rdb, poster: poster, cfg: cfg, log: log.With().Str("queue", cfg.Queue).Logger()}
}

// Start lanza los workers. Terminan cuando ctx se cancela; Wait espera a que salgan.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.run(ctx, i)
	}
	c.log.Info().Int("workers", c.cfg.Workers).Msg("consumidor de pagos iniciado")
}

// Wait bloquea hasta que todos los workers salen.
func (c *Consumer) Wait() { c.wg.Wait() }

func (c *Consumer) run(ctx context.Context, id int) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			c.log.Info().Int("worker", id).Msg("worker detenido")
			return
		}
		// BRPOP bloquea hasta PopTimeout y vuelve a mirar ctx.
		res, err := c.rdb.BRPop(ctx, c.cfg.PopTimeout, c.cfg.Queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				c.log.Error().Err(err).Int("worker", id).Msg("brpop")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		c.handle(ctx, res[1])
	}
}

// handle procesa un evento ya extraído de la cola. Corre desacoplado de la cancelación
// del worker: un evento sacado con BRPOP siempre termina aplicado, reencolado o descartado.
func (c *Consumer) handle(ctx context.Context, raw string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HandleTimeout)
	defer cancel()

	var evt PaymentEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		c.deadLetter(ctx, PaymentEvent{}, "json inválido: "+err.Error())
		return
	}
	outcome, err := Process(ctx, c.poster, evt, c.cfg.MaxAttempts)
	switch outcome {
	case Applied:
		c.log.Debug().Str("shift_id", evt.ShiftID).Str("request_id", evt.RequestID).Msg("pago aplicado")
	case Retry:
		evt.Attempts++
		data, _ := json.Marshal(evt)
		if perr := c.rdb.LPush(ctx, c.cfg.Queue, data).Err(); perr != nil {
			c.log.Error().Err(perr).Str("request_id", evt.RequestID).Msg("no se pudo reencolar")
			return
		}
		c.log.Warn().Err(err).Str("request_id", evt.RequestID).Int("attempts", evt.Attempts).Msg("pago reencolado")
	case DeadLetter:
		c.deadLetter(ctx, evt, err.Error())
	}
}

func (c *Consumer) deadLetter(ctx context.Context, evt PaymentEvent, reason string) {
	entry := DLQEntry{Queue: c.cfg.Queue, Event: evt, Reason: reason, FailedAt: time.Now().UTC().Format(time.RFC3339)}
	data, err := json.Marshal(entry)
	if err != nil {
		c.log.Error().Err(err).Msg("dlq: marshal")
		return
	}
	if err := c.rdb.LPush(ctx, DLQPrefix+c.cfg.Queue, data).Err(); err != nil {
		c.log.Error().Err(err).Msg("dlq: push")
		return
	}
	c.log.Warn().Str("request_id", evt.RequestID).Str("reason", reason).Msg("pago enviado a la cola de descarte")
}

// DLQLength cantidad de eventos descartados de la cola.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Process aplica un evento al turno y decide qué hacer con él.
// Reintenta solo errores reintentables mientras no se agoten los intentos.
func Process(ctx context.Context, poster Poster, evt PaymentEvent, maxAttempts int) (Outcome, error) {
	amount, err := money.Parse(evt.Amount)
	if err != nil {
		return DeadLetter, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
	}
	_, err = poster.PostSalePayment(ctx, shift.PostPaymentInput{
		ShiftID:   evt.ShiftID,
		Method:    evt.Method,
		Amount:    amount,
		RequestID: evt.RequestID,
		Actor:     entity.Actor{ID: evt.ActorID, Name: evt.ActorName},
	})
	switch {
	case err == nil:
		return Applied, nil
	case domain.IsRetryable(err) && evt.Attempts+1 < maxAttempts:
		return Retry, err
	default:
		return DeadLetter, err
	}
}
