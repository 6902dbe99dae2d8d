// Package feed turns Postgres change notifications into incremental deltas
// and streams them to websocket subscribers.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Delta is one row change published by the notify_report_change trigger.
type Delta struct {
	Op       Op              `json:"op"`
	Table    string          `json:"table"`
	ID       string          `json:"id"`
	ReportID string          `json:"report_id,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
	TS       time.Time       `json:"ts"`
}

func (d Delta) key() string {
	return d.Table + ":" + d.ID
}

func ParseDelta(payload string) (Delta, error) {
	var d Delta
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return Delta{}, fmt.Errorf("failed to decode change payload: %w", err)
	}

	d.Op = Op(strings.ToUpper(string(d.Op)))
	switch d.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Delta{}, fmt.Errorf("unknown change op %q", d.Op)
	}
	if d.Table == "" || d.ID == "" {
		return Delta{}, fmt.Errorf("change payload missing table or id")
	}
	if string(d.Record) == "null" {
		d.Record = nil
	}
	return d, nil
}
