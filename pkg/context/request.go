// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"

	"github.com/google/uuid"
)

const (
	RequestHeader = "X-Request-Id"
)

type RequestID struct{}

// WithUUID returns ctx carrying a request id, minting one if none is set.
func WithUUID(c context.Context) (context.Context, string) {
	if id, ok := c.Value(RequestID{}).(string); ok && id != "" {
		return c, id
	}
	newID := uuid.New().String()
	c = context.WithValue(c, RequestID{}, newID)
	return c, newID
}

func FromUUID(c context.Context, reqID string) context.Context {
	return context.WithValue(c, RequestID{}, reqID)
}

// ID returns the request id carried by c, or "".
func ID(c context.Context) string {
	id, _ := c.Value(RequestID{}).(string)
	return id
}
