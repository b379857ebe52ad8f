package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/weekly/internal/domain/timetable"
)

type fakeWriter struct {
	topic  string
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.topic = topic
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent(typ timetable.EventType) timetable.Event {
	return timetable.Event{
		ID:          "evt-1",
		Type:        typ,
		TimetableID: "tt1",
		UserID:      "user1",
		WeekStart:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Version:     4,
		OccurredAt:  time.Date(2024, 6, 12, 8, 30, 0, 0, time.UTC),
		Payload:     map[string]any{"day_index": 2},
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "", nil)

	evt := sampleEvent(timetable.EventCellToggled)
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Equal(t, DefaultTopic, w.topic)
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	require.Equal(t, "tt1", string(msg.Key))
	require.True(t, msg.Time.Equal(evt.OccurredAt))
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, "week.cell_toggled", string(msg.Headers[0].Value))

	var decoded timetable.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, evt.Type, decoded.Type)
	require.Equal(t, int64(4), decoded.Version)
	require.EqualValues(t, 2, decoded.Payload["day_index"])
}

func TestKafkaPublisher_SurvivesCanceledRequest(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "custom", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Publish(ctx, sampleEvent(timetable.EventWeekRolledOver)))
	require.Equal(t, "custom", w.topic)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewKafkaPublisher(w, "t", nil)

	err := p.Publish(context.Background(), sampleEvent(timetable.EventNotesUpdated))
	require.ErrorContains(t, err, "broker unavailable")

	require.NoError(t, p.Publish(context.Background()))
	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestKafkaProducer_WriterPerTopic(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})
	a := p.writerForTopic("a")
	require.Same(t, a, p.writerForTopic("a"))
	require.NotSame(t, a, p.writerForTopic("b"))
	require.NoError(t, p.Close())
	require.Empty(t, p.writers)
}

func TestKafkaProducer_WriterFlushesQuickly(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})
	defer p.Close()

	w := p.writerForTopic(DefaultTopic)
	require.Equal(t, batchTimeout, w.BatchTimeout)
	require.Less(t, w.BatchTimeout, 100*time.Millisecond)
	require.Same(t, w, p.writerForTopic(DefaultTopic))
}
