package probe

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
)

// FlowBatch is the wire payload: one device's flow records for one window.
type FlowBatch struct {
	DeviceID string             `json:"device_id"`
	Flows    []model.FlowRecord `json:"flows"`
}

// Publisher is responsible for publishing flow batches to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a flow batch to JSON and publishes it to the configured
// NATS subject.
func (p *Publisher) Publish(batch *FlowBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
