package broadcaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	exitwal "tickloop/infra/wal/exit"
)

func newOutbox(t *testing.T) *exitwal.Outbox {
	t.Helper()
	o, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func newProducer(t *testing.T) *mocks.SyncProducer {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func TestPublishOnceAcksAndPurges(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(1, []byte("one")))
	require.NoError(t, outbox.PutNew(2, []byte("two")))

	producer := newProducer(t)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "one" {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	b := New(outbox, producer, Config{Topic: "orders"}, nil, zaptest.NewLogger(t))
	assert.Equal(t, 2, b.PublishOnce())

	_, err := outbox.Get(1)
	assert.ErrorIs(t, err, exitwal.ErrNotFound)
	_, err = outbox.Get(2)
	assert.ErrorIs(t, err, exitwal.ErrNotFound)

	require.NoError(t, b.Close())
}

func TestPublishFailureIsRetried(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(7, []byte("seven")))

	producer := newProducer(t)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	b := New(outbox, producer, Config{Topic: "orders"}, nil, zaptest.NewLogger(t))

	assert.Equal(t, 0, b.PublishOnce())
	rec, err := outbox.Get(7)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
	assert.Equal(t, []byte("seven"), rec.Payload)

	assert.Equal(t, 1, b.PublishOnce())
	_, err = outbox.Get(7)
	assert.ErrorIs(t, err, exitwal.ErrNotFound)

	require.NoError(t, b.Close())
}

func TestRetryBoundStopsPublishing(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(3, []byte("three")))
	require.NoError(t, outbox.UpdateState(3, exitwal.StateFailed, 2))

	producer := newProducer(t)
	b := New(outbox, producer, Config{Topic: "orders", MaxRetries: 2}, nil, zaptest.NewLogger(t))

	assert.Equal(t, 0, b.PublishOnce())
	rec, err := outbox.Get(3)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)

	require.NoError(t, b.Close())
}

func TestRunDrainsOnShutdown(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(9, []byte("nine")))

	producer := newProducer(t)
	producer.ExpectSendMessageAndSucceed()

	b := New(outbox, producer, Config{Topic: "orders", Interval: time.Hour}, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))

	_, err := outbox.Get(9)
	assert.ErrorIs(t, err, exitwal.ErrNotFound)
	require.NoError(t, b.Close())
}

func TestSentLeftoverIsRepublished(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(4, []byte("four")))
	require.NoError(t, outbox.UpdateState(4, exitwal.StateSent, 0))

	producer := newProducer(t)
	producer.ExpectSendMessageAndSucceed()

	b := New(outbox, producer, Config{Topic: "orders"}, nil, zaptest.NewLogger(t))
	assert.Equal(t, 1, b.PublishOnce())
	require.NoError(t, b.Close())
}
