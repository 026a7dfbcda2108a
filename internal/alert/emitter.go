package alert

import (
	"context"
	"encoding/json"
)

// Publisher is the subset of transport.Publisher an Emitter needs,
// restated here to avoid alert depending on the transport package.
type Publisher interface {
	Publish(ctx context.Context, stream string, payload []byte) error
}

// BusEmitter implements evaluator.Emitter by JSON-encoding each alert's
// wire record (§6) and publishing it on a named stream, typically
// "alerts".
type BusEmitter struct {
	pub    Publisher
	stream string
}

// NewBusEmitter constructs a BusEmitter publishing onto stream via pub.
func NewBusEmitter(pub Publisher, stream string) *BusEmitter {
	return &BusEmitter{pub: pub, stream: stream}
}

// Emit encodes a's wire record and publishes it.
func (b *BusEmitter) Emit(a *Alert) error {
	data, err := json.Marshal(a.Wire())
	if err != nil {
		return err
	}
	return b.pub.Publish(context.Background(), b.stream, data)
}
