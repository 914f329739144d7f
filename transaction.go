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
	"log/slog"
	"sync"
)

type callResult struct {
	frame *Frame
	err   error
}

// pendingCall is one outstanding request awaiting its response. The
// done channel has capacity 1 so the resolver never blocks on a caller
// that already gave up.
type pendingCall struct {
	txID uint16
	done chan callResult
}

// transactionManager correlates responses arriving on the shared read
// loop with the requests that are waiting for them, keyed by
// transaction ID.
type transactionManager struct {
	mu      sync.Mutex
	pending map[uint16]*pendingCall
	ids     TransactionIDGenerator
	logger  *slog.Logger
	metrics *Metrics
}

func newTransactionManager(logger *slog.Logger, metrics *Metrics) *transactionManager {
	return &transactionManager{
		pending: make(map[uint16]*pendingCall),
		logger:  logger,
		metrics: metrics,
	}
}

// register allocates a fresh transaction ID, skipping any that is
// still pending, and returns the call to wait on.
func (tm *transactionManager) register() *pendingCall {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txID := tm.ids.Next()
	for {
		if _, taken := tm.pending[txID]; !taken {
			break
		}
		txID = tm.ids.Next()
	}

	call := &pendingCall{
		txID: txID,
		done: make(chan callResult, 1),
	}
	tm.pending[txID] = call
	return call
}

// deregister removes a call that will no longer consume its response,
// typically after a timeout. A response that arrives later is treated
// as stray and dropped.
func (tm *transactionManager) deregister(call *pendingCall) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.pending, call.txID)
}

// resolve hands a received frame to the call waiting on its
// transaction ID. Frames with no waiter are dropped and counted; they
// are late responses to requests that already timed out.
func (tm *transactionManager) resolve(frame *Frame) {
	tm.mu.Lock()
	call, ok := tm.pending[frame.Header.TransactionID]
	if ok {
		delete(tm.pending, frame.Header.TransactionID)
	}
	tm.mu.Unlock()

	if !ok {
		tm.metrics.StrayResponses.Add(1)
		tm.logger.Warn("dropping stray response",
			slog.Uint64("tx_id", uint64(frame.Header.TransactionID)))
		return
	}

	call.done <- callResult{frame: frame}
}

// failAll resolves every pending call with err. Called when the read
// loop dies; no response can arrive on a dead connection.
func (tm *transactionManager) failAll(err error) {
	tm.mu.Lock()
	calls := make([]*pendingCall, 0, len(tm.pending))
	for _, call := range tm.pending {
		calls = append(calls, call)
	}
	tm.pending = make(map[uint16]*pendingCall)
	tm.mu.Unlock()

	for _, call := range calls {
		call.done <- callResult{err: err}
	}
}

// pendingCount returns the number of outstanding transactions.
func (tm *transactionManager) pendingCount() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.pending)
}
