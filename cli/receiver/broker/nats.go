package broker

/*
Fan-out of decoded fixes and per-device status updates. Subject layout
follows the original deployment: COO.<imei> carries the full location as
JSON, REQSTATUS.<imei> carries the bare status code so lightweight
subscribers can watch device state without decoding fixes.
*/

import (
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
)

const (
	coordinateSubjectPrefix = "COO."
	statusSubjectPrefix     = "REQSTATUS."
)

// Broker publishes pipeline output to interested subscribers.
type Broker interface {
	Publish(subject string, payload []byte) error
}

// NATS is the production Broker implementation.
type NATS struct {
	conn *nats.Conn
}

func Connect(url string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("tk103-receiver"))
	if err != nil {
		return nil, fmt.Errorf("NATS connection failed: %v", err)
	}
	return &NATS{conn: conn}, nil
}

func (b *NATS) Publish(subject string, payload []byte) error {
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %v", subject, err)
	}
	return nil
}

func (b *NATS) Close() {
	b.conn.Close()
}

// CoordinateSubject is the per-device subject for full location payloads.
func CoordinateSubject(imei uint64) string {
	return coordinateSubjectPrefix + strconv.FormatUint(imei, 10)
}

// StatusSubject is the per-device subject for bare status codes.
func StatusSubject(imei uint64) string {
	return statusSubjectPrefix + strconv.FormatUint(imei, 10)
}
