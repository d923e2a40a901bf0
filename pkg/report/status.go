// Package report builds the status messages pushed to the collector.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/itohio/thermomon/pkg/max31855"
)

// Channel is the reported state of one probe.
type Channel struct {
	ID        int    `json:"id"`
	Fault     string `json:"fault,omitempty"`
	Probe     int32  `json:"probe_mc"`
	Reference int32  `json:"reference_mc"`
}

// Status is the body of a status push.
type Status struct {
	Device   string    `json:"device"`
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Channels []Channel `json:"channels"`
}

// NewChannel converts a decoded reading.
func NewChannel(id int, r max31855.Reading) Channel {
	c := Channel{ID: id, Probe: r.Probe, Reference: r.Reference}
	if !r.Valid() {
		c.Fault = r.Fault.String()
	}
	return c
}

// Marshal encodes s as JSON.
func (s Status) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	return b, nil
}
