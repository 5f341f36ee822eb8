package ingest

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-dashboard-backend/internal/processor"
	"transfer-dashboard-backend/models"
	"transfer-dashboard-backend/storage"
)

// fakeReader replays fixed messages then reports EOF
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return kafkago.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func messages(values ...string) []kafkago.Message {
	out := make([]kafkago.Message, len(values))
	for i, v := range values {
		out[i] = kafkago.Message{Offset: int64(i), Value: []byte(v)}
	}
	return out
}

const simpleJSON = `{"timestamp":"2024-03-01T09:00:00Z","source_chain":"Ethereum","destination_chain":"filecoin",
	"sender_address":"0xabc","token_amount":4,"token_unit_price":"2.5","fee_value":null,
	"event_id":"tt-1","status":"executed","simplified_status":"received"}`

const messageJSON = `{"timestamp":"2024-03-01T10:00:00Z","source_chain":"filecoin","destination_chain":"moonbeam",
	"sender_address":"0xdef","native_value":"10","express_fee_usd":"1.25",
	"event_id":"gmp-1","status":"executed","simplified_status":"received"}`

func TestDecodeSimple(t *testing.T) {
	ev, err := DecodeSimple([]byte(simpleJSON))
	require.NoError(t, err)
	assert.Equal(t, "tt-1", ev.EventID)
	assert.Equal(t, models.RawNumber("4"), ev.TokenAmount)
	assert.False(t, ev.FeeValue.Present())

	_, err = DecodeSimple([]byte(`{"source_chain":"filecoin"}`))
	assert.Error(t, err)
	_, err = DecodeSimple([]byte(`not json`))
	assert.Error(t, err)
}

func TestConsumerFeedsProcessor(t *testing.T) {
	out := make(chan models.NormalizedTransfer, 10)
	sink := storage.NewMemory()
	p := processor.NewProcessor(processor.DefaultConfig(), "filecoin", sink, out)

	simpleReader := &fakeReader{msgs: messages(simpleJSON, `{broken`, simpleJSON)}
	messageReader := &fakeReader{msgs: messages(messageJSON)}
	c := NewConsumerWithReaders(simpleReader, messageReader, p)

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop at end of input")
	}

	// invalid and duplicate messages are still committed
	assert.Equal(t, []int64{0, 1, 2}, simpleReader.committed)
	assert.Equal(t, []int64{0}, messageReader.committed)
	assert.True(t, simpleReader.closed)
	assert.True(t, messageReader.closed)

	simple, msgs := sink.Counts()
	assert.Equal(t, 1, simple)
	assert.Equal(t, 1, msgs)
	assert.Len(t, out, 2)
}

func TestProcessUnknownFeed(t *testing.T) {
	c := NewConsumerWithReaders(&fakeReader{}, &fakeReader{}, nil)
	res, err := c.Process(context.Background(), "bogus", []byte(`{}`))
	assert.Error(t, err)
	assert.Equal(t, ResultInvalid, res)
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Brokers = nil
	_, err := NewConsumer(cfg, nil)
	assert.Error(t, err)
}
