package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ivanzxc/go-realtime-vitals/internal/log"
)

// Publisher is the publishing half of *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with unlimited reconnects. name identifies the
// component in the server's connection list.
func Connect(url, name string) (*nats.Conn, error) {
	logger := log.With("component", "nats", "client", name)
	nc, err := nats.Connect(
		url,
		nats.Name("go-realtime-vitals/"+name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return nc, nil
}

// PublishJSON marshals v and publishes it on subject.
func PublishJSON(p Publisher, subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.Publish(subject, b)
}

// PublishBatch encodes b with msgpack and publishes it on subject.
func PublishBatch(p Publisher, subject string, b FrameBatch) error {
	data, err := EncodeBatch(b)
	if err != nil {
		return err
	}
	return p.Publish(subject, data)
}
