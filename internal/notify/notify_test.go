package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared  []string
	published []amqp091.Publishing
	keys      []string
	declErr   error
	closed    bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	c.declared = append(c.declared, name+"/"+kind)
	return c.declErr
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishRunCompleted(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch)
	require.NoError(t, err)

	err = p.PublishRunCompleted(context.Background(), RunCompleted{
		RunID:   "abc",
		Dataset: "cuba",
		Family:  "legacy",
		Graphs:  map[string]GraphCounts{"coRT": {Nodes: 3, Edges: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"pipeline_exchange/topic"}, ch.declared)
	assert.Equal(t, []string{"pipeline_exchange/simnet.run.completed"}, ch.keys)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, "abc", ch.published[0].MessageId)

	var msg RunCompleted
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &msg))
	assert.Equal(t, 2, msg.Graphs["coRT"].Edges)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestDeclareFailure(t *testing.T) {
	_, err := newPublisher(&fakeChannel{declErr: errors.New("denied")})
	assert.Error(t, err)
}

func TestParamsURL(t *testing.T) {
	p := Params{User: "u", Password: "p", Host: "rabbit"}
	assert.Equal(t, "amqp://u:p@rabbit:5672/", p.URL())
}
