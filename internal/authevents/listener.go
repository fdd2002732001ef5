package authevents

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Notifier receives session lifecycle transitions.
type Notifier interface {
	OnAuthenticated(ctx context.Context) error
	OnUnauthenticated()
}

// messageReader is the part of kafka.Reader the listener needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes session events from the auth collaborator and turns
// them into engine notifications (login triggers the one-time cart merge).
type Listener struct {
	reader messageReader
	engine Notifier
}

func NewListener(engine Notifier, brokers ...string) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "session-events",
		GroupID:  "cart-sync-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Listener{reader, engine}
}

// newWithReader wires a custom reader. Tests only.
func newWithReader(reader messageReader, engine Notifier) *Listener {
	return &Listener{reader, engine}
}

func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.readAndDispatch(ctx)
	}
}

func (l *Listener) Close() {
	if err := l.reader.Close(); err != nil {
		log.WithError(err).Error("error closing session event reader")
	}
}

func (l *Listener) readAndDispatch(ctx context.Context) {
	m, err := l.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("error reading session event")
		}
		return
	}

	var payload map[string]interface{}
	if errUnMarshal := json.Unmarshal(m.Value, &payload); errUnMarshal != nil {
		log.WithError(errUnMarshal).Error("error parsing session event")
		return
	}
	event, ok := payload["event"].(string)
	if !ok {
		log.Error("session event missing or invalid event field")
		return
	}

	switch event {
	case "login":
		if errMerge := l.engine.OnAuthenticated(ctx); errMerge != nil {
			log.WithError(errMerge).Error("login merge failed")
		}
	case "logout":
		l.engine.OnUnauthenticated()
	default:
		log.WithField("event", event).Warn("ignoring unknown session event")
	}
}
