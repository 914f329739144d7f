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

// Package mbtcp implements the Modbus TCP application protocol: MBAP
// framing, PDU encoding/decoding, a concurrent register data store, a
// request dispatcher, and a client and server built on top of them.
package mbtcp

import "time"

// UnitID addresses a sub-device behind a Modbus TCP endpoint. It is
// rarely meaningful over TCP but must round-trip through the MBAP
// header unchanged.
type UnitID uint8

// FunctionCode identifies a Modbus operation.
type FunctionCode uint8

// Supported Modbus function codes.
const (
	FuncReadCoils              FunctionCode = 0x01
	FuncReadDiscreteInputs     FunctionCode = 0x02
	FuncReadHoldingRegisters   FunctionCode = 0x03
	FuncReadInputRegisters     FunctionCode = 0x04
	FuncWriteSingleCoil        FunctionCode = 0x05
	FuncWriteSingleRegister    FunctionCode = 0x06
	FuncWriteMultipleCoils     FunctionCode = 0x0F
	FuncWriteMultipleRegisters FunctionCode = 0x10
)

// IsSupported reports whether fc belongs to the closed set of function
// codes this implementation serves. Anything else is answered with an
// IllegalFunction exception.
func (fc FunctionCode) IsSupported() bool {
	switch fc {
	case FuncReadCoils, FuncReadDiscreteInputs,
		FuncReadHoldingRegisters, FuncReadInputRegisters,
		FuncWriteSingleCoil, FuncWriteSingleRegister,
		FuncWriteMultipleCoils, FuncWriteMultipleRegisters:
		return true
	}
	return false
}

// String returns the conventional name of the function code.
func (fc FunctionCode) String() string {
	switch fc {
	case FuncReadCoils:
		return "ReadCoils"
	case FuncReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FuncReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncReadInputRegisters:
		return "ReadInputRegisters"
	case FuncWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncWriteSingleRegister:
		return "WriteSingleRegister"
	case FuncWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FuncWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	default:
		return "Unknown"
	}
}

// Protocol constants.
const (
	// MaxQuantityCoils is the maximum number of coils per read (FC01/FC02).
	MaxQuantityCoils = 2000

	// MaxQuantityDiscreteInputs is the maximum number of discrete inputs per read.
	MaxQuantityDiscreteInputs = 2000

	// MaxQuantityRegisters is the maximum number of registers per read (FC03/FC04).
	MaxQuantityRegisters = 125

	// MaxQuantityWriteRegisters is the maximum number of registers per multi-write (FC16).
	MaxQuantityWriteRegisters = 123

	// MaxQuantityWriteCoils is the maximum number of coils per multi-write (FC15).
	MaxQuantityWriteCoils = 1968

	// MBAPHeaderSize is the size of the MBAP header in bytes, unit ID included.
	MBAPHeaderSize = 7

	// MaxPDUSize is the maximum PDU size in bytes. The MBAP length field
	// covers the unit ID plus the PDU, so its valid range is [1, MaxPDUSize+1].
	MaxPDUSize = 253

	// ProtocolID is the Modbus protocol identifier (always 0 for Modbus TCP).
	ProtocolID = 0

	// DefaultTimeout is the default per-transaction timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultPort is the Modbus TCP port this deployment uses. The
	// registered protocol port is 502; 5020 keeps the daemon out of the
	// privileged range.
	DefaultPort = 5020

	// DefaultBankSize is the default number of entries per data-store bank.
	DefaultBankSize = 100
)

// Coil values on the wire for single-coil writes.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

// Handler executes validated Modbus requests on the server side. The
// dispatcher has already checked quantity limits and byte counts when
// these are called; implementations are responsible for address-bounds
// checks and return *ModbusError for protocol-level rejections.
type Handler interface {
	ReadCoils(addr, qty uint16) ([]bool, error)
	ReadDiscreteInputs(addr, qty uint16) ([]bool, error)
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)

	WriteSingleCoil(addr uint16, value bool) error
	WriteSingleRegister(addr, value uint16) error
	WriteMultipleCoils(addr uint16, values []bool) error
	WriteMultipleRegisters(addr uint16, values []uint16) error
}

// ConnectionState represents the state of a client connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
