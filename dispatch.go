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
	"encoding/binary"
	"log/slog"
)

// Dispatcher routes a decoded request frame to a Handler and renders
// the result, Modbus exceptions included, as a response frame. A
// request never produces an error at this layer: every failure maps to
// an exception PDU so the client always gets an answer.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher serving requests from handler.
func NewDispatcher(handler Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handler: handler, logger: logger}
}

// Dispatch executes one request and returns the response frame. The
// transaction ID and unit ID are echoed from the request.
func (d *Dispatcher) Dispatch(req *Frame) *Frame {
	resp := &Frame{
		Header: MBAPHeader{
			TransactionID: req.Header.TransactionID,
			ProtocolID:    ProtocolID,
			UnitID:        req.Header.UnitID,
		},
	}

	if len(req.PDU) == 0 {
		resp.PDU = BuildExceptionPDU(0, ExceptionIllegalFunction)
		return resp
	}

	fc := FunctionCode(req.PDU[0])

	d.logger.Debug("processing request",
		slog.Uint64("tx_id", uint64(req.Header.TransactionID)),
		slog.Uint64("unit_id", uint64(req.Header.UnitID)),
		slog.String("func", fc.String()))

	var pdu []byte
	var err error

	switch fc {
	case FuncReadCoils:
		pdu, err = d.handleReadCoils(req.PDU)
	case FuncReadDiscreteInputs:
		pdu, err = d.handleReadDiscreteInputs(req.PDU)
	case FuncReadHoldingRegisters:
		pdu, err = d.handleReadHoldingRegisters(req.PDU)
	case FuncReadInputRegisters:
		pdu, err = d.handleReadInputRegisters(req.PDU)
	case FuncWriteSingleCoil:
		pdu, err = d.handleWriteSingleCoil(req.PDU)
	case FuncWriteSingleRegister:
		pdu, err = d.handleWriteSingleRegister(req.PDU)
	case FuncWriteMultipleCoils:
		pdu, err = d.handleWriteMultipleCoils(req.PDU)
	case FuncWriteMultipleRegisters:
		pdu, err = d.handleWriteMultipleRegisters(req.PDU)
	default:
		pdu = BuildExceptionPDU(fc, ExceptionIllegalFunction)
	}

	if err != nil {
		pdu = d.handleError(fc, err)
	}

	resp.PDU = pdu
	return resp
}

func (d *Dispatcher) handleError(fc FunctionCode, err error) []byte {
	if modbusErr, ok := err.(*ModbusError); ok {
		return BuildExceptionPDU(fc, modbusErr.ExceptionCode)
	}
	d.logger.Error("handler error",
		slog.String("func", fc.String()),
		slog.String("error", err.Error()))
	return BuildExceptionPDU(fc, ExceptionServerDeviceFailure)
}

func (d *Dispatcher) handleReadCoils(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncReadCoils, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])

	if qty < 1 || qty > MaxQuantityCoils {
		return BuildExceptionPDU(FuncReadCoils, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncReadCoils, ExceptionIllegalDataAddress), nil
	}

	values, err := d.handler.ReadCoils(addr, qty)
	if err != nil {
		return nil, err
	}
	if uint16(len(values)) != qty {
		return BuildExceptionPDU(FuncReadCoils, ExceptionServerDeviceFailure), nil
	}

	return buildBitsResponse(FuncReadCoils, values), nil
}

func (d *Dispatcher) handleReadDiscreteInputs(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncReadDiscreteInputs, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])

	if qty < 1 || qty > MaxQuantityDiscreteInputs {
		return BuildExceptionPDU(FuncReadDiscreteInputs, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncReadDiscreteInputs, ExceptionIllegalDataAddress), nil
	}

	values, err := d.handler.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, err
	}
	if uint16(len(values)) != qty {
		return BuildExceptionPDU(FuncReadDiscreteInputs, ExceptionServerDeviceFailure), nil
	}

	return buildBitsResponse(FuncReadDiscreteInputs, values), nil
}

func (d *Dispatcher) handleReadHoldingRegisters(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncReadHoldingRegisters, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])

	if qty < 1 || qty > MaxQuantityRegisters {
		return BuildExceptionPDU(FuncReadHoldingRegisters, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncReadHoldingRegisters, ExceptionIllegalDataAddress), nil
	}

	values, err := d.handler.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if uint16(len(values)) != qty {
		return BuildExceptionPDU(FuncReadHoldingRegisters, ExceptionServerDeviceFailure), nil
	}

	return buildRegistersResponse(FuncReadHoldingRegisters, values), nil
}

func (d *Dispatcher) handleReadInputRegisters(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncReadInputRegisters, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])

	if qty < 1 || qty > MaxQuantityRegisters {
		return BuildExceptionPDU(FuncReadInputRegisters, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncReadInputRegisters, ExceptionIllegalDataAddress), nil
	}

	values, err := d.handler.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if uint16(len(values)) != qty {
		return BuildExceptionPDU(FuncReadInputRegisters, ExceptionServerDeviceFailure), nil
	}

	return buildRegistersResponse(FuncReadInputRegisters, values), nil
}

func (d *Dispatcher) handleWriteSingleCoil(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncWriteSingleCoil, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	value := binary.BigEndian.Uint16(pdu[3:5])

	// Only 0xFF00 and 0x0000 are legal coil values on the wire.
	if value != CoilOn && value != CoilOff {
		return BuildExceptionPDU(FuncWriteSingleCoil, ExceptionIllegalDataValue), nil
	}

	if err := d.handler.WriteSingleCoil(addr, value == CoilOn); err != nil {
		return nil, err
	}

	// The response echoes the request.
	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

func (d *Dispatcher) handleWriteSingleRegister(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return BuildExceptionPDU(FuncWriteSingleRegister, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	value := binary.BigEndian.Uint16(pdu[3:5])

	if err := d.handler.WriteSingleRegister(addr, value); err != nil {
		return nil, err
	}

	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

func (d *Dispatcher) handleWriteMultipleCoils(pdu []byte) ([]byte, error) {
	if len(pdu) < 6 {
		return BuildExceptionPDU(FuncWriteMultipleCoils, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])
	byteCount := int(pdu[5])

	if qty < 1 || qty > MaxQuantityWriteCoils {
		return BuildExceptionPDU(FuncWriteMultipleCoils, ExceptionIllegalDataValue), nil
	}
	if byteCount != int((qty+7)/8) || len(pdu) < 6+byteCount {
		return BuildExceptionPDU(FuncWriteMultipleCoils, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncWriteMultipleCoils, ExceptionIllegalDataAddress), nil
	}

	values := BytesToBools(pdu[6:6+byteCount], int(qty))
	if err := d.handler.WriteMultipleCoils(addr, values); err != nil {
		return nil, err
	}

	resp := make([]byte, 5)
	resp[0] = byte(FuncWriteMultipleCoils)
	binary.BigEndian.PutUint16(resp[1:3], addr)
	binary.BigEndian.PutUint16(resp[3:5], qty)
	return resp, nil
}

func (d *Dispatcher) handleWriteMultipleRegisters(pdu []byte) ([]byte, error) {
	if len(pdu) < 6 {
		return BuildExceptionPDU(FuncWriteMultipleRegisters, ExceptionIllegalDataValue), nil
	}
	addr := binary.BigEndian.Uint16(pdu[1:3])
	qty := binary.BigEndian.Uint16(pdu[3:5])
	byteCount := int(pdu[5])

	if qty < 1 || qty > MaxQuantityWriteRegisters {
		return BuildExceptionPDU(FuncWriteMultipleRegisters, ExceptionIllegalDataValue), nil
	}
	if byteCount != int(qty)*2 || len(pdu) < 6+byteCount {
		return BuildExceptionPDU(FuncWriteMultipleRegisters, ExceptionIllegalDataValue), nil
	}
	if uint32(addr)+uint32(qty) > 65536 {
		return BuildExceptionPDU(FuncWriteMultipleRegisters, ExceptionIllegalDataAddress), nil
	}

	values := BytesToUint16s(pdu[6 : 6+byteCount])
	if err := d.handler.WriteMultipleRegisters(addr, values); err != nil {
		return nil, err
	}

	resp := make([]byte, 5)
	resp[0] = byte(FuncWriteMultipleRegisters)
	binary.BigEndian.PutUint16(resp[1:3], addr)
	binary.BigEndian.PutUint16(resp[3:5], qty)
	return resp, nil
}

func buildBitsResponse(fc FunctionCode, values []bool) []byte {
	packed := BoolsToBytes(values)
	resp := make([]byte, 2+len(packed))
	resp[0] = byte(fc)
	resp[1] = byte(len(packed))
	copy(resp[2:], packed)
	return resp
}

func buildRegistersResponse(fc FunctionCode, values []uint16) []byte {
	resp := make([]byte, 2+2*len(values))
	resp[0] = byte(fc)
	resp[1] = byte(2 * len(values))
	copy(resp[2:], Uint16sToBytes(values))
	return resp
}
