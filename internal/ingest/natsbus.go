package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkohut/screenmemory/internal/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Notifier is told about every EntityReady event alongside the in-process
// plugin dispatch, so external consumers can observe ingestion without
// running inside the pipeline's process.
type Notifier interface {
	Publish(ctx context.Context, event EntityReady)
}

// publisher is the slice of *nats.Conn this package depends on, narrowed
// so Publish can be exercised against a fake in tests.
type publisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes EntityReady events to a NATS subject as JSON.
// Optional: the pipeline runs with no notifier at all when nats.url is
// unset in configuration.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	log     *logging.Logger
}

// DialNATS connects to url with the same retry posture as a long-lived
// daemon: retry the initial dial, reconnect on drop.
func DialNATS(url, subject string, log *logging.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("ingest: connect nats at %s: %w", url, err)
	}
	if subject == "" {
		subject = "screenmemory.entities"
	}
	return &NATSNotifier{conn: nc, pub: nc, subject: subject, log: log}, nil
}

// Close closes the underlying connection without draining it.
func (n *NATSNotifier) Close() {
	n.conn.Close()
}

// Publish marshals event and fires it at subject.<entity_id>, logging
// (not returning) any publish failure: a dropped notification must never
// fail the ingestion it describes.
func (n *NATSNotifier) Publish(ctx context.Context, event EntityReady) {
	data, err := json.Marshal(event)
	if err != nil {
		n.log.Warn(ctx, "ingest: marshal entity-ready event failed", zap.Error(err))
		return
	}
	subject := fmt.Sprintf("%s.%d", n.subject, event.EntityID)
	if err := n.pub.Publish(subject, data); err != nil {
		n.log.Warn(ctx, "ingest: publish entity-ready event failed", zap.String("subject", subject), zap.Error(err))
	}
}
