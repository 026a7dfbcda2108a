package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	stream  string
	payload []byte
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, payload []byte) error {
	p.stream = stream
	p.payload = payload
	return nil
}

func TestBusEmitterPublishesWireRecord(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewBusEmitter(pub, "alerts")

	a := &Alert{RuleName: "r", Element: "e", State: StateActive, Ctime: time.Unix(1, 0)}
	require.NoError(t, emitter.Emit(a))

	assert.Equal(t, "alerts", pub.stream)
	var record WireRecord
	require.NoError(t, json.Unmarshal(pub.payload, &record))
	assert.Equal(t, "r", record.Rule)
	assert.Equal(t, "e", record.Element)
}
