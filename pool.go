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
	"sync"
	"sync/atomic"
	"time"
)

// Pool manages a bounded set of client connections to one server.
// Callers Get a client, run transactions on it, and Put it back;
// disconnected clients are discarded rather than returned.
type Pool struct {
	addr string
	opts *poolOptions

	mu      sync.Mutex
	conns   chan *Client
	factory func() (*Client, error)
	closed  int32
	size    int
	created int
	metrics *PoolMetrics
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// PoolMetrics holds pool-specific metrics.
type PoolMetrics struct {
	Gets      Counter
	Puts      Counter
	Hits      Counter
	Misses    Counter
	Timeouts  Counter
	Created   Counter
	Closed    Counter
	Available Counter
}

// NewPool creates a new connection pool.
func NewPool(addr string, opts ...PoolOption) (*Pool, error) {
	if addr == "" {
		return nil, errors.New("mbtcp: pool address cannot be empty")
	}

	options := defaultPoolOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.size < 1 {
		options.size = 1
	}

	p := &Pool{
		addr:    addr,
		opts:    options,
		conns:   make(chan *Client, options.size),
		size:    options.size,
		metrics: &PoolMetrics{},
		stopCh:  make(chan struct{}),
	}

	p.factory = func() (*Client, error) {
		return NewClient(addr, options.clientOpts...)
	}

	if options.healthCheckFreq > 0 {
		p.wg.Add(1)
		go p.healthChecker()
	}

	return p, nil
}

// Get retrieves a client from the pool, creating one if necessary.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, ErrPoolClosed
	}

	p.metrics.Gets.Add(1)

	select {
	case client := <-p.conns:
		p.metrics.Hits.Add(1)
		p.metrics.Available.Add(-1)

		if client.State() != StateConnected {
			// Replace the dead client, keeping its slot.
			client.Close()
			return p.createAndConnect(ctx)
		}
		return client, nil

	default:
		p.metrics.Misses.Add(1)
	}

	// No available connection, create a new one if under limit
	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()
		return p.createAndConnect(ctx)
	}
	p.mu.Unlock()

	// Wait for a connection to become available
	select {
	case client := <-p.conns:
		p.metrics.Available.Add(-1)
		if client.State() != StateConnected {
			client.Close()
			return p.createAndConnect(ctx)
		}
		return client, nil

	case <-ctx.Done():
		p.metrics.Timeouts.Add(1)
		return nil, ctx.Err()

	case <-p.stopCh:
		return nil, ErrPoolClosed
	}
}

func (p *Pool) decrementCreated() {
	p.mu.Lock()
	p.created--
	p.mu.Unlock()
}

func (p *Pool) createAndConnect(ctx context.Context) (*Client, error) {
	client, err := p.factory()
	if err != nil {
		p.decrementCreated()
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		client.Close()
		p.decrementCreated()
		return nil, err
	}

	p.metrics.Created.Add(1)
	return client, nil
}

// Put returns a client to the pool.
func (p *Pool) Put(client *Client) {
	if client == nil {
		return
	}

	if atomic.LoadInt32(&p.closed) == 1 {
		client.Close()
		p.decrementCreated()
		p.metrics.Closed.Add(1)
		return
	}

	p.metrics.Puts.Add(1)

	// Don't return disconnected clients
	if client.State() != StateConnected {
		client.Close()
		p.decrementCreated()
		p.metrics.Closed.Add(1)
		return
	}

	select {
	case p.conns <- client:
		p.metrics.Available.Add(1)
	default:
		// Pool is full, close the client
		client.Close()
		p.decrementCreated()
		p.metrics.Closed.Add(1)
	}
}

// Close closes all connections in the pool.
func (p *Pool) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	close(p.stopCh)
	close(p.conns)

	for client := range p.conns {
		client.Close()
		p.metrics.Closed.Add(1)
	}

	p.wg.Wait()
	return nil
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	created := p.created
	p.mu.Unlock()

	return PoolStats{
		Size:      p.size,
		Created:   created,
		Available: len(p.conns),
		Gets:      p.metrics.Gets.Value(),
		Puts:      p.metrics.Puts.Value(),
		Hits:      p.metrics.Hits.Value(),
		Misses:    p.metrics.Misses.Value(),
		Timeouts:  p.metrics.Timeouts.Value(),
	}
}

// Metrics returns the pool metrics.
func (p *Pool) Metrics() *PoolMetrics {
	return p.metrics
}

// PoolStats holds pool statistics.
type PoolStats struct {
	Size      int
	Created   int
	Available int
	Gets      int64
	Puts      int64
	Hits      int64
	Misses    int64
	Timeouts  int64
}

func (p *Pool) healthChecker() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.healthCheckFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt32(&p.closed) == 1 {
				return
			}
			p.checkHealth()
		case <-p.stopCh:
			return
		}
	}
}

// checkHealth drains the pool, discards dead clients, and returns the
// healthy ones.
func (p *Pool) checkHealth() {
	checked := make([]*Client, 0, p.size)

	for {
		select {
		case client, ok := <-p.conns:
			if !ok {
				return
			}
			p.metrics.Available.Add(-1)
			if client.State() == StateConnected {
				checked = append(checked, client)
				continue
			}
			client.Close()
			p.decrementCreated()
			p.metrics.Closed.Add(1)

		default:
			for _, client := range checked {
				select {
				case p.conns <- client:
					p.metrics.Available.Add(1)
				default:
					client.Close()
					p.decrementCreated()
					p.metrics.Closed.Add(1)
				}
			}
			return
		}
	}
}
