package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T, prefix string) (*NATSSink, *nats.Conn) {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	sink, err := ConnectNATS(url, prefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)
	return sink, sub
}

func TestNATSSink_PublishDecision(t *testing.T) {
	sink, nc := testConnect(t, "myassistant.test."+t.Name())

	sub, err := nc.SubscribeSync(sink.Subject(KindDecision))
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	want := Event{
		Kind:       KindDecision,
		SessionID:  "s-1",
		TurnIndex:  1,
		Specialist: "technical",
		Previous:   "general",
		Source:     "classifier",
		State:      "classified_high_confidence",
		Confidence: 0.95,
		Rationale:  "sql tuning",
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, sink.Publish(context.Background(), want))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.Specialist, got.Specialist)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestNATSSink_Subject(t *testing.T) {
	sink := &NATSSink{prefix: "myassistant.routing"}
	assert.Equal(t, "myassistant.routing.decision", sink.Subject(KindDecision))
	assert.Equal(t, "myassistant.routing.switch", sink.Subject(KindSwitch))
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Publish(context.Background(), Event{Kind: KindDecision}))
	assert.NoError(t, s.Close())
}
