package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/hearo-tools/internal/notify"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subject = "hearo.audio.created"

func connect(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsConnection
}

func TestNatsPublisher_PublishAudioCreated(t *testing.T) {
	t.Parallel()

	natsConnection := connect(t)

	sub, err := natsConnection.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	publisher, err := notify.NewNatsPublisher(natsConnection, subject, "hearo")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, publisher.PublishAudioCreated(ctx, "fantasy/lunge_perfect", "fantasy/lunge_perfect.wav"))
	require.NoError(t, publisher.PublishAudioCreated(ctx, "fantasy/lunge_good", "fantasy/lunge_good.wav"))

	first := nextEvent(t, sub)
	second := nextEvent(t, sub)

	assert.Equal(t, "fantasy/lunge_perfect.wav", first.AudioKey)
	assert.Equal(t, "fantasy/lunge_good.wav", second.AudioKey)
	assert.Equal(t, publisher.WorkflowID(), first.Header.WorkflowID)
	assert.Equal(t, publisher.WorkflowID(), second.Header.WorkflowID)
	assert.NotEqual(t, first.Header.EventID, second.Header.EventID)
	assert.Equal(t, "hearo", first.Header.TenantID)
	assert.False(t, first.Header.Timestamp.IsZero())
}

func TestNewNatsPublisher_Validation(t *testing.T) {
	t.Parallel()

	_, err := notify.NewNatsPublisher(nil, subject, "")
	require.ErrorIs(t, err, notify.ErrConnectionNil)

	_, err = notify.NewNatsPublisher(connect(t), "", "")
	require.ErrorIs(t, err, notify.ErrSubjectEmpty)
}

func TestNewNatsPublisher_WorkflowPerRun(t *testing.T) {
	t.Parallel()

	natsConnection := connect(t)

	first, err := notify.NewNatsPublisher(natsConnection, subject, "")
	require.NoError(t, err)

	second, err := notify.NewNatsPublisher(natsConnection, subject, "")
	require.NoError(t, err)

	assert.NotEqual(t, first.WorkflowID(), second.WorkflowID())
}

func nextEvent(t *testing.T, sub *nats.Subscription) events.AudioChunkCreatedEvent {
	t.Helper()

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))

	return event
}
