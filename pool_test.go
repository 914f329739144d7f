// Copyright 2026 Scadalink
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mbtcp

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPool_EmptyAddress(t *testing.T) {
	if _, err := NewPool(""); err == nil {
		t.Error("Expected error for empty address")
	}
}

func TestPool_GetPut(t *testing.T) {
	addr := startTestServer(t, NewDataStore(100))

	pool, err := NewPool(addr, WithSize(2), WithHealthCheckFrequency(0))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, err := client.ReadCoils(ctx, 0, 1); err != nil {
		t.Fatalf("ReadCoils failed: %v", err)
	}

	pool.Put(client)

	stats := pool.Stats()
	if stats.Created != 1 {
		t.Errorf("Created: expected 1, got %d", stats.Created)
	}
	if stats.Available != 1 {
		t.Errorf("Available: expected 1, got %d", stats.Available)
	}

	// The second Get reuses the pooled client.
	again, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if again != client {
		t.Error("Expected the pooled client to be reused")
	}
	if pool.Metrics().Hits.Value() != 1 {
		t.Errorf("Hits: expected 1, got %d", pool.Metrics().Hits.Value())
	}
	pool.Put(again)
}

func TestPool_ExhaustedWaitsForPut(t *testing.T) {
	addr := startTestServer(t, NewDataStore(100))

	pool, err := NewPool(addr, WithSize(1), WithHealthCheckFrequency(0))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	done := make(chan *Client, 1)
	go func() {
		second, err := pool.Get(ctx)
		if err != nil {
			done <- nil
			return
		}
		done <- second
	}()

	time.Sleep(50 * time.Millisecond)
	pool.Put(client)

	select {
	case second := <-done:
		if second == nil {
			t.Fatal("waiting Get failed")
		}
		pool.Put(second)
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not unblock after Put")
	}
}

func TestPool_ExhaustedContextTimeout(t *testing.T) {
	addr := startTestServer(t, NewDataStore(100))

	pool, err := NewPool(addr, WithSize(1), WithHealthCheckFrequency(0))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer pool.Put(client)

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()

	if _, err := pool.Get(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if pool.Metrics().Timeouts.Value() != 1 {
		t.Errorf("Timeouts: expected 1, got %d", pool.Metrics().Timeouts.Value())
	}
}

func TestPool_DisconnectedClientNotReturned(t *testing.T) {
	addr := startTestServer(t, NewDataStore(100))

	pool, err := NewPool(addr, WithSize(2), WithHealthCheckFrequency(0))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	client.Close()
	pool.Put(client)

	stats := pool.Stats()
	if stats.Available != 0 {
		t.Errorf("Available: expected 0, got %d", stats.Available)
	}
	if stats.Created != 0 {
		t.Errorf("Created: expected 0, got %d", stats.Created)
	}
}

func TestPool_Close(t *testing.T) {
	addr := startTestServer(t, NewDataStore(100))

	pool, err := NewPool(addr, WithSize(2), WithHealthCheckFrequency(0))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	pool.Put(client)

	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if _, err := pool.Get(ctx); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}

	if client.State() != StateDisconnected {
		t.Error("Pooled client should be closed on pool Close")
	}
}

func TestPool_ClientOptionsApplied(t *testing.T) {
	store := NewDataStore(100)
	addr := startTestServer(t, store)

	pool, err := NewPool(addr,
		WithSize(1),
		WithHealthCheckFrequency(0),
		WithClientOptions(WithUnitID(9), WithTimeout(time.Second)))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := pool.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer pool.Put(client)

	if client.UnitID() != 9 {
		t.Errorf("UnitID: expected 9, got %d", client.UnitID())
	}
}
