package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"kol-campaign-api-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInlineSyncReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	q := NewInline(func(context.Context, models.EmailJob) error { return boom }, zap.NewNop(), false)

	err := q.Publish(context.Background(), models.EmailJob{ID: "1", Kind: models.EmailInvitation})
	assert.ErrorIs(t, err, boom)
}

func TestInlineAsyncRunsEveryJob(t *testing.T) {
	var ran atomic.Int32
	q := NewInline(func(context.Context, models.EmailJob) error {
		ran.Add(1)
		return errors.New("logged, not returned")
	}, zap.NewNop(), true)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		assert.NoError(t, q.Publish(ctx, models.EmailJob{Kind: models.EmailReminder}))
	}
	cancel()
	q.Wait()

	assert.Equal(t, int32(5), ran.Load())
}

// acks records how a delivery was settled.
type acks struct {
	calls []string
}

func (a *acks) Ack(uint64, bool) error { a.calls = append(a.calls, "ack"); return nil }

func (a *acks) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.calls = append(a.calls, "requeue")
	} else {
		a.calls = append(a.calls, "dead-letter")
	}
	return nil
}

func (a *acks) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestConsumerSettlesDeliveries(t *testing.T) {
	job, err := json.Marshal(models.EmailJob{ID: "job-1", Kind: models.EmailInvitation})
	require.NoError(t, err)
	transient := errors.New("smtp timeout")

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		err         error
		want        string
		handled     bool
	}{
		{"success", job, false, nil, "ack", true},
		{"first transient failure", job, false, transient, "requeue", true},
		{"transient failure on redelivery", job, true, transient, "dead-letter", true},
		{"permanent failure", job, false, fmt.Errorf("render: %w", ErrPermanent), "dead-letter", true},
		{"success on redelivery", job, true, nil, "ack", true},
		{"undecodable body", []byte("{not json"), false, nil, "dead-letter", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &acks{}
			d := amqp.Delivery{Acknowledger: a, DeliveryTag: 7, Body: tt.body, Redelivered: tt.redelivered, RoutingKey: "email.invitation"}

			var got *models.EmailJob
			c := &AMQPConsumer{log: zap.NewNop()}
			c.handle(context.Background(), d, func(_ context.Context, j models.EmailJob) error {
				got = &j
				return tt.err
			})

			assert.Equal(t, []string{tt.want}, a.calls)
			if tt.handled {
				require.NotNil(t, got)
				assert.Equal(t, "job-1", got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

type fakeChannel struct {
	closed    bool
	failOnce  error
	published []string
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, _ amqp.Publishing) error {
	if f.failOnce != nil {
		err := f.failOnce
		f.failOnce = nil
		f.closed = true
		return err
	}
	f.published = append(f.published, key)
	return nil
}

func (f *fakeChannel) IsClosed() bool { return f.closed }
func (f *fakeChannel) Close() error   { f.closed = true; return nil }

type fakeConn struct{ closed bool }

func (f *fakeConn) Close() error { f.closed = true; return nil }

type dialer struct {
	channels []*fakeChannel
	conns    []*fakeConn
	err      error
}

func (d *dialer) open() (channel, io.Closer, error) {
	if d.err != nil {
		return nil, nil, d.err
	}
	ch, conn := &fakeChannel{}, &fakeConn{}
	d.channels = append(d.channels, ch)
	d.conns = append(d.conns, conn)
	return ch, conn, nil
}

func TestPublisherReopensClosedChannel(t *testing.T) {
	d := &dialer{}
	p, err := newPublisher("kol.email", d.open)
	require.NoError(t, err)
	job := models.EmailJob{ID: "1", Kind: models.EmailInvitation}

	require.NoError(t, p.Publish(context.Background(), job))
	require.Len(t, d.channels, 1)

	// broker restart
	d.channels[0].closed = true
	require.NoError(t, p.Publish(context.Background(), job))
	require.Len(t, d.channels, 2)
	assert.True(t, d.conns[0].closed)
	assert.Equal(t, []string{job.RoutingKey()}, d.channels[1].published)

	// closed while publishing
	d.channels[1].failOnce = amqp.ErrClosed
	require.NoError(t, p.Publish(context.Background(), job))
	require.Len(t, d.channels, 3)
	assert.Equal(t, []string{job.RoutingKey()}, d.channels[2].published)
}

func TestPublisherReportsBrokerDown(t *testing.T) {
	down := errors.New("dial rabbitmq: connection refused")
	_, err := newPublisher("kol.email", (&dialer{err: down}).open)
	assert.ErrorIs(t, err, down)

	d := &dialer{}
	p, err := newPublisher("kol.email", d.open)
	require.NoError(t, err)
	d.channels[0].closed = true
	d.err = down
	assert.ErrorIs(t, p.Publish(context.Background(), models.EmailJob{Kind: models.EmailReminder}), down)

	d.err = nil
	assert.NoError(t, p.Publish(context.Background(), models.EmailJob{Kind: models.EmailReminder}))
	assert.NoError(t, p.Close())
	assert.True(t, d.conns[len(d.conns)-1].closed)
}
