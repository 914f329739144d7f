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
	"errors"
	"fmt"
)

// ExceptionCode identifies why a server rejected a request.
type ExceptionCode uint8

// Modbus exception codes.
const (
	ExceptionIllegalFunction     ExceptionCode = 0x01
	ExceptionIllegalDataAddress  ExceptionCode = 0x02
	ExceptionIllegalDataValue    ExceptionCode = 0x03
	ExceptionServerDeviceFailure ExceptionCode = 0x04
	ExceptionAcknowledge         ExceptionCode = 0x05
	ExceptionServerDeviceBusy    ExceptionCode = 0x06
)

// String returns the string representation of the exception code.
func (e ExceptionCode) String() string {
	switch e {
	case ExceptionIllegalFunction:
		return "illegal function"
	case ExceptionIllegalDataAddress:
		return "illegal data address"
	case ExceptionIllegalDataValue:
		return "illegal data value"
	case ExceptionServerDeviceFailure:
		return "server device failure"
	case ExceptionAcknowledge:
		return "acknowledge"
	case ExceptionServerDeviceBusy:
		return "server device busy"
	default:
		return fmt.Sprintf("unknown exception (0x%02X)", uint8(e))
	}
}

// ModbusError is a protocol-level exception response. The connection
// that carried it remains usable; only the rejected request failed.
type ModbusError struct {
	FunctionCode  FunctionCode
	ExceptionCode ExceptionCode
}

// Error implements the error interface.
func (e *ModbusError) Error() string {
	return fmt.Sprintf("mbtcp: exception %s (FC=%02X)", e.ExceptionCode, e.FunctionCode)
}

// Is matches any *ModbusError with the same exception code.
func (e *ModbusError) Is(target error) bool {
	t, ok := target.(*ModbusError)
	if !ok {
		return false
	}
	return e.ExceptionCode == t.ExceptionCode
}

// NewModbusError creates a new Modbus exception error.
func NewModbusError(fc FunctionCode, ec ExceptionCode) *ModbusError {
	return &ModbusError{
		FunctionCode:  fc,
		ExceptionCode: ec,
	}
}

// Common errors.
var (
	// ErrShortFrame indicates the buffer does not yet hold a complete
	// frame; the caller must read more bytes and retry.
	ErrShortFrame = errors.New("mbtcp: short frame")

	// ErrInvalidFrame indicates a malformed frame. There is no way to
	// resynchronize a byte stream after one, so it is fatal to the
	// connection that produced it.
	ErrInvalidFrame = errors.New("mbtcp: invalid frame")

	// ErrInvalidResponse indicates the response was well-framed but did
	// not match the request that is pending.
	ErrInvalidResponse = errors.New("mbtcp: invalid response")

	// ErrTimeout indicates a transaction timed out before a matching
	// response arrived.
	ErrTimeout = errors.New("mbtcp: timeout")

	// ErrConnectionClosed indicates the connection was closed locally.
	ErrConnectionClosed = errors.New("mbtcp: connection closed")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("mbtcp: not connected")

	// ErrInvalidQuantity indicates a quantity outside the per-function limits.
	ErrInvalidQuantity = errors.New("mbtcp: invalid quantity")

	// ErrInvalidAddress indicates an address range beyond the 16-bit space.
	ErrInvalidAddress = errors.New("mbtcp: invalid address")

	// ErrPoolExhausted indicates no connections are available in the pool.
	ErrPoolExhausted = errors.New("mbtcp: connection pool exhausted")

	// ErrPoolClosed indicates the pool has been closed.
	ErrPoolClosed = errors.New("mbtcp: connection pool closed")
)

// IsException checks if an error is a specific Modbus exception.
func IsException(err error, code ExceptionCode) bool {
	var modbusErr *ModbusError
	if errors.As(err, &modbusErr) {
		return modbusErr.ExceptionCode == code
	}
	return false
}

// IsIllegalFunction checks if the error is an illegal function exception.
func IsIllegalFunction(err error) bool {
	return IsException(err, ExceptionIllegalFunction)
}

// IsIllegalDataAddress checks if the error is an illegal data address exception.
func IsIllegalDataAddress(err error) bool {
	return IsException(err, ExceptionIllegalDataAddress)
}

// IsIllegalDataValue checks if the error is an illegal data value exception.
func IsIllegalDataValue(err error) bool {
	return IsException(err, ExceptionIllegalDataValue)
}

// IsServerDeviceFailure checks if the error is a server device failure exception.
func IsServerDeviceFailure(err error) bool {
	return IsException(err, ExceptionServerDeviceFailure)
}
