// Package storage provides an optional audit sink for sent and received AS2
// messages.
//
// # Implementations
//
// The mongodb sub-package provides a MongoDB-backed [Store]. [NewNoopStore]
// returns an in-memory implementation with no external dependency, used by
// default when no storage backend is configured.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("message record not found")

// Store persists a record of every AS2 message sent or received, for audit
// and MDN-matching purposes. Payload bytes are stored alongside metadata;
// the mongodb sub-package keeps each record, payload included, as a single
// document in one collection, without chunked storage.
type Store interface {
	// StoreMessage records a new message.
	StoreMessage(ctx context.Context, record *MessageRecord) error

	// GetMessage retrieves a message by its AS2 message id.
	GetMessage(ctx context.Context, messageID string) (*MessageRecord, error)

	// UpdateDisposition records the MDN outcome for a previously stored
	// outbound message.
	UpdateDisposition(ctx context.Context, messageID string, disposition string, receivedAt time.Time) error

	// ListMessages returns messages matching filter, most recent first.
	ListMessages(ctx context.Context, filter *MessageFilter) ([]*MessageRecord, error)

	// Close releases storage resources.
	Close(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// Direction distinguishes a sent message from a received one.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MessageRecord is one audited AS2 exchange: the SBD envelope plus the
// transport-level facts needed to explain or replay it.
type MessageRecord struct {
	MessageID       string    `bson:"_id" json:"messageId"`
	Direction       Direction `bson:"direction" json:"direction"`
	SenderAS2ID     string    `bson:"sender_as2_id" json:"senderAs2Id"`
	ReceiverAS2ID   string    `bson:"receiver_as2_id" json:"receiverAs2Id"`
	DocumentType    string    `bson:"document_type" json:"documentType"`
	Process         string    `bson:"process" json:"process"`
	SBDHInstanceID  string    `bson:"sbdh_instance_id" json:"sbdhInstanceId"`
	SentAt          time.Time `bson:"sent_at" json:"sentAt"`
	MIC             string    `bson:"mic,omitempty" json:"mic,omitempty"`
	MicAlgorithm    string    `bson:"mic_algorithm,omitempty" json:"micAlgorithm,omitempty"`
	Disposition     string    `bson:"disposition,omitempty" json:"disposition,omitempty"`
	DispositionAt   *time.Time `bson:"disposition_at,omitempty" json:"dispositionAt,omitempty"`
	SBDHBytes       []byte    `bson:"sbdh_bytes" json:"-"`
}

// MessageFilter narrows ListMessages.
type MessageFilter struct {
	Direction     Direction
	SenderAS2ID   string
	ReceiverAS2ID string
	Since         *time.Time
	Limit         int
}
