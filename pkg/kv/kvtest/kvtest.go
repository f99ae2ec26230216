// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package kvtest provides store fixtures for tests of packages built on kv.
package kvtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapstats/pkg/kv"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// ErrUnavailable is what FailingStore returns from every command.
var ErrUnavailable = errors.New("kvtest: store unavailable")

// NewClient starts an in-process store and returns it with a connected
// kv.Client. Both are torn down when the test finishes.
func NewClient(t *testing.T) (*miniredis.Miniredis, *kv.Client) {
	t.Helper()
	return NewClientWithNamespace(t, "")
}

// NewClientWithNamespace is NewClient with a key namespace.
func NewClientWithNamespace(t *testing.T, namespace string) (*miniredis.Miniredis, *kv.Client) {
	t.Helper()
	s := miniredis.RunT(t)

	cfg := kv.DefaultConfig()
	cfg.URL = "redis://" + s.Addr()
	cfg.Namespace = namespace
	cfg.MaxRetries = 1

	client, err := kv.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return s, client
}

// FailingStore is a kv.Store whose every command fails.
type FailingStore struct {
	Err error
}

var _ kv.Store = FailingStore{}

func (f FailingStore) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrUnavailable
}

func (f FailingStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, f.err()
}

func (f FailingStore) Get(context.Context, string) (string, error) { return "", f.err() }

func (f FailingStore) SetEX(context.Context, string, any, time.Duration) error { return f.err() }

func (f FailingStore) ZAdd(context.Context, string, float64, string) error { return f.err() }

func (f FailingStore) ZRemRangeByScore(context.Context, string, string, string) (int64, error) {
	return 0, f.err()
}

func (f FailingStore) ZCard(context.Context, string) (int64, error) { return 0, f.err() }

func (f FailingStore) Ping(context.Context) error { return f.err() }
