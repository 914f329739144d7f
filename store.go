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
	"sync"

	"github.com/TheCount/go-multilocker/multilocker"
)

// bitBank is a bounded bank of single-bit values guarded by its own
// read-write lock.
type bitBank struct {
	mu     sync.RWMutex
	values []bool
}

func newBitBank(size int) *bitBank {
	return &bitBank{values: make([]bool, size)}
}

func (b *bitBank) read(fc FunctionCode, addr, qty uint16) ([]bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if int(addr)+int(qty) > len(b.values) {
		return nil, NewModbusError(fc, ExceptionIllegalDataAddress)
	}
	result := make([]bool, qty)
	copy(result, b.values[addr:int(addr)+int(qty)])
	return result, nil
}

func (b *bitBank) write(fc FunctionCode, addr uint16, values []bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(addr)+len(values) > len(b.values) {
		return NewModbusError(fc, ExceptionIllegalDataAddress)
	}
	copy(b.values[addr:], values)
	return nil
}

// wordBank is a bounded bank of 16-bit registers guarded by its own
// read-write lock.
type wordBank struct {
	mu     sync.RWMutex
	values []uint16
}

func newWordBank(size int) *wordBank {
	return &wordBank{values: make([]uint16, size)}
}

func (b *wordBank) read(fc FunctionCode, addr, qty uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if int(addr)+int(qty) > len(b.values) {
		return nil, NewModbusError(fc, ExceptionIllegalDataAddress)
	}
	result := make([]uint16, qty)
	copy(result, b.values[addr:int(addr)+int(qty)])
	return result, nil
}

func (b *wordBank) write(fc FunctionCode, addr uint16, values []uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(addr)+len(values) > len(b.values) {
		return NewModbusError(fc, ExceptionIllegalDataAddress)
	}
	copy(b.values[addr:], values)
	return nil
}

// DataStore is an in-memory register map with four independent banks:
// coils, discrete inputs, holding registers, and input registers. Each
// bank has its own lock, so operations on different banks never contend.
// A request that touches any address beyond a bank's capacity is
// rejected whole with an IllegalDataAddress exception; no partial
// reads or writes occur.
//
// DataStore implements Handler and can be served directly.
type DataStore struct {
	coils            *bitBank
	discreteInputs   *bitBank
	holdingRegisters *wordBank
	inputRegisters   *wordBank
}

// NewDataStore creates a data store with size entries in each bank,
// all initialized to zero. A size of 0 uses DefaultBankSize.
func NewDataStore(size int) *DataStore {
	if size <= 0 {
		size = DefaultBankSize
	}
	return &DataStore{
		coils:            newBitBank(size),
		discreteInputs:   newBitBank(size),
		holdingRegisters: newWordBank(size),
		inputRegisters:   newWordBank(size),
	}
}

// ReadCoils implements Handler.
func (s *DataStore) ReadCoils(addr, qty uint16) ([]bool, error) {
	return s.coils.read(FuncReadCoils, addr, qty)
}

// ReadDiscreteInputs implements Handler.
func (s *DataStore) ReadDiscreteInputs(addr, qty uint16) ([]bool, error) {
	return s.discreteInputs.read(FuncReadDiscreteInputs, addr, qty)
}

// ReadHoldingRegisters implements Handler.
func (s *DataStore) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	return s.holdingRegisters.read(FuncReadHoldingRegisters, addr, qty)
}

// ReadInputRegisters implements Handler.
func (s *DataStore) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	return s.inputRegisters.read(FuncReadInputRegisters, addr, qty)
}

// WriteSingleCoil implements Handler.
func (s *DataStore) WriteSingleCoil(addr uint16, value bool) error {
	return s.coils.write(FuncWriteSingleCoil, addr, []bool{value})
}

// WriteSingleRegister implements Handler.
func (s *DataStore) WriteSingleRegister(addr, value uint16) error {
	return s.holdingRegisters.write(FuncWriteSingleRegister, addr, []uint16{value})
}

// WriteMultipleCoils implements Handler.
func (s *DataStore) WriteMultipleCoils(addr uint16, values []bool) error {
	return s.coils.write(FuncWriteMultipleCoils, addr, values)
}

// WriteMultipleRegisters implements Handler.
func (s *DataStore) WriteMultipleRegisters(addr uint16, values []uint16) error {
	return s.holdingRegisters.write(FuncWriteMultipleRegisters, addr, values)
}

// SetDiscreteInput sets a discrete input directly. Discrete inputs are
// read-only on the wire; this is the process-side feed for them.
func (s *DataStore) SetDiscreteInput(addr uint16, value bool) error {
	return s.discreteInputs.write(FuncReadDiscreteInputs, addr, []bool{value})
}

// SetInputRegister sets an input register directly. Input registers are
// read-only on the wire; this is the process-side feed for them.
func (s *DataStore) SetInputRegister(addr, value uint16) error {
	return s.inputRegisters.write(FuncReadInputRegisters, addr, []uint16{value})
}

// SetCoil sets a coil directly, bypassing the wire path.
func (s *DataStore) SetCoil(addr uint16, value bool) error {
	return s.coils.write(FuncWriteSingleCoil, addr, []bool{value})
}

// SetHoldingRegister sets a holding register directly, bypassing the wire path.
func (s *DataStore) SetHoldingRegister(addr, value uint16) error {
	return s.holdingRegisters.write(FuncWriteSingleRegister, addr, []uint16{value})
}

// StoreSnapshot is a point-in-time copy of all four banks.
type StoreSnapshot struct {
	Coils            []bool
	DiscreteInputs   []bool
	HoldingRegisters []uint16
	InputRegisters   []uint16
}

// locker returns a sync.Locker holding all four bank locks, acquired
// deadlock-free regardless of what other lock orders are in flight.
func (s *DataStore) locker() sync.Locker {
	return multilocker.New(
		&s.coils.mu,
		&s.discreteInputs.mu,
		&s.holdingRegisters.mu,
		&s.inputRegisters.mu,
	)
}

// Snapshot returns a consistent copy of all four banks. The banks are
// locked together, so the snapshot never interleaves with a concurrent
// write.
func (s *DataStore) Snapshot() *StoreSnapshot {
	ml := s.locker()
	ml.Lock()
	defer ml.Unlock()

	snap := &StoreSnapshot{
		Coils:            make([]bool, len(s.coils.values)),
		DiscreteInputs:   make([]bool, len(s.discreteInputs.values)),
		HoldingRegisters: make([]uint16, len(s.holdingRegisters.values)),
		InputRegisters:   make([]uint16, len(s.inputRegisters.values)),
	}
	copy(snap.Coils, s.coils.values)
	copy(snap.DiscreteInputs, s.discreteInputs.values)
	copy(snap.HoldingRegisters, s.holdingRegisters.values)
	copy(snap.InputRegisters, s.inputRegisters.values)
	return snap
}

// Restore overwrites the banks from a snapshot taken earlier. Slices
// longer than a bank are truncated to the bank's capacity.
func (s *DataStore) Restore(snap *StoreSnapshot) {
	ml := s.locker()
	ml.Lock()
	defer ml.Unlock()

	copy(s.coils.values, snap.Coils)
	copy(s.discreteInputs.values, snap.DiscreteInputs)
	copy(s.holdingRegisters.values, snap.HoldingRegisters)
	copy(s.inputRegisters.values, snap.InputRegisters)
}
