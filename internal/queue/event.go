// Package queue defines the activation mail messages exchanged over RabbitMQ
// and the worker that consumes them.
package queue

import "time"

// ActivationQueue is the durable queue carrying activation mail requests.
const ActivationQueue = "auth.activation"

// ActivationRequested is published after an account is registered or asks
// for a new activation code. Link already contains the code.
type ActivationRequested struct {
	Email       string    `json:"email"`
	Code        string    `json:"code"`
	Link        string    `json:"link"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}
