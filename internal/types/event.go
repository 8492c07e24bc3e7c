// Package types defines shared types used across the application
package types

import "time"

// Envelope is a push request delivered by a Pub/Sub push subscription.
// Every field is required; unknown fields on the wire are ignored.
type Envelope struct {
	Message      Message `json:"message"`
	Subscription string  `json:"subscription"`
}

// Message is the Pub/Sub message carried by an Envelope.
// Data holds the base64-encoded notification; PublishTime is kept exactly
// as delivered and is never parsed.
type Message struct {
	Data        string `json:"data"`
	MessageID   string `json:"messageId"`
	PublishTime string `json:"publishTime"`
}

// Notification is a Gmail mailbox-change event.
// HistoryID is an opaque change marker and stays a string.
type Notification struct {
	EmailAddress string `json:"email_address"`
	HistoryID    string `json:"history_id"`
}

// Delivery is a notification waiting in the asynchronous delivery queue.
type Delivery struct {
	Notification Notification
	Meta         *DeliveryMeta
}

// DeliveryMeta holds delivery bookkeeping for a queued notification
type DeliveryMeta struct {
	EnqueuedAt   time.Time
	RetryAttempt int
	MaxRetries   int
}
