// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package events publishes recommendation change notifications through
// Watermill, usually onto a NATS subject.
//
// The batch job publishes one RecommendationsUpdated event per user whose
// stored set changed. Consumers (cache invalidation, push notifications)
// decode messages with Decode.
package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Metadata keys set on every message.
const (
	MetadataUserID = "user_id"
	MetadataRunID  = "run_id"
)

// RecommendationsUpdated announces that a user's stored recommendations
// were replaced (Count > 0) or cleared (Count == 0).
type RecommendationsUpdated struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Count      int       `json:"count"`
	RunID      string    `json:"run_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message serializes the event into a Watermill message keyed by EventID.
func (e *RecommendationsUpdated) Message() (*message.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set(MetadataUserID, e.UserID)
	if e.RunID != "" {
		msg.Metadata.Set(MetadataRunID, e.RunID)
	}
	return msg, nil
}

// Decode parses a RecommendationsUpdated payload.
func Decode(payload []byte) (*RecommendationsUpdated, error) {
	var e RecommendationsUpdated
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("deserialize event: %w", err)
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("deserialize event: missing user_id")
	}
	return &e, nil
}
