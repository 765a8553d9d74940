//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jhoicas/Caja-api/internal/infrastructure/queue"
)

func TestConsumer_RedisDeExtremoAExtremo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(rdURL)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	m, _, shiftID := setup(t)
	const q = "caja:pagos:test"
	pub := queue.NewPublisher(rdb, q)
	require.NoError(t, pub.Publish(ctx, queue.PaymentEvent{ShiftID: shiftID, Method: "cash", Amount: "20.00", RequestID: "v-1", ActorID: "pos"}))
	require.NoError(t, pub.Publish(ctx, queue.PaymentEvent{ShiftID: shiftID, Method: "cash", Amount: "20.00", RequestID: "v-1", ActorID: "pos"}))
	require.NoError(t, pub.Publish(ctx, queue.PaymentEvent{ShiftID: shiftID, Method: "cheque", Amount: "1.00", RequestID: "v-2", ActorID: "pos"}))

	c := queue.NewConsumer(rdb, m, queue.ConsumerConfig{Queue: q, Workers: 2, PopTimeout: 200 * time.Millisecond}, zerolog.Nop())
	c.Start(ctx)

	require.Eventually(t, func() bool {
		n, err := queue.DLQLength(ctx, rdb, q)
		return err == nil && n == 1
	}, 10*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		sum, err := m.GetSummary(ctx, shiftID)
		return err == nil && sum.CashSales.String() == "20.00"
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	c.Wait()
	sum, err := m.GetSummary(context.Background(), shiftID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PostingCount)
}
