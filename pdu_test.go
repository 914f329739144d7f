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
	"bytes"
	"errors"
	"testing"
)

func TestBuildReadCoilsPDU(t *testing.T) {
	pdu, err := BuildReadCoilsPDU(0x0013, 0x0025)
	if err != nil {
		t.Fatalf("BuildReadCoilsPDU failed: %v", err)
	}

	expected := []byte{0x01, 0x00, 0x13, 0x00, 0x25}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}
}

func TestBuildReadCoilsPDU_InvalidQuantity(t *testing.T) {
	if _, err := BuildReadCoilsPDU(0, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("qty 0: expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := BuildReadCoilsPDU(0, MaxQuantityCoils+1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("qty 2001: expected ErrInvalidQuantity, got %v", err)
	}
}

func TestBuildReadPDU_AddressOverflow(t *testing.T) {
	if _, err := BuildReadHoldingRegistersPDU(0xFFFF, 2); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestBuildReadHoldingRegistersPDU(t *testing.T) {
	pdu, err := BuildReadHoldingRegistersPDU(0x006B, 0x0003)
	if err != nil {
		t.Fatalf("BuildReadHoldingRegistersPDU failed: %v", err)
	}

	expected := []byte{0x03, 0x00, 0x6B, 0x00, 0x03}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}
}

func TestBuildReadHoldingRegistersPDU_QuantityLimit(t *testing.T) {
	if _, err := BuildReadHoldingRegistersPDU(0, MaxQuantityRegisters); err != nil {
		t.Errorf("qty 125 should be accepted, got %v", err)
	}
	if _, err := BuildReadHoldingRegistersPDU(0, MaxQuantityRegisters+1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("qty 126: expected ErrInvalidQuantity, got %v", err)
	}
}

func TestBuildWriteSingleCoilPDU(t *testing.T) {
	on := BuildWriteSingleCoilPDU(0x00AC, true)
	expectedOn := []byte{0x05, 0x00, 0xAC, 0xFF, 0x00}
	if !bytes.Equal(on, expectedOn) {
		t.Errorf("on: expected %x, got %x", expectedOn, on)
	}

	off := BuildWriteSingleCoilPDU(0x00AC, false)
	expectedOff := []byte{0x05, 0x00, 0xAC, 0x00, 0x00}
	if !bytes.Equal(off, expectedOff) {
		t.Errorf("off: expected %x, got %x", expectedOff, off)
	}
}

func TestBuildWriteSingleRegisterPDU(t *testing.T) {
	pdu := BuildWriteSingleRegisterPDU(0x0001, 0x0003)
	expected := []byte{0x06, 0x00, 0x01, 0x00, 0x03}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}
}

func TestBuildWriteMultipleCoilsPDU(t *testing.T) {
	pdu, err := BuildWriteMultipleCoilsPDU(0x0013, []bool{true, false, true, true, false, false, true, true, true, false})
	if err != nil {
		t.Fatalf("BuildWriteMultipleCoilsPDU failed: %v", err)
	}

	expected := []byte{0x0F, 0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}
}

func TestBuildWriteMultipleRegistersPDU(t *testing.T) {
	pdu, err := BuildWriteMultipleRegistersPDU(0x0001, []uint16{0x000A, 0x0102})
	if err != nil {
		t.Fatalf("BuildWriteMultipleRegistersPDU failed: %v", err)
	}

	expected := []byte{0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}
}

func TestBuildWriteMultipleRegistersPDU_QuantityLimit(t *testing.T) {
	values := make([]uint16, MaxQuantityWriteRegisters+1)
	if _, err := BuildWriteMultipleRegistersPDU(0, values); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("qty 124: expected ErrInvalidQuantity, got %v", err)
	}
}

func TestParseCoilsResponse(t *testing.T) {
	// 10 coils: CD 01 -> 1,0,1,1,0,0,1,1 1,0
	resp := []byte{0x01, 0x02, 0xCD, 0x01}
	values, err := ParseCoilsResponse(resp, 10)
	if err != nil {
		t.Fatalf("ParseCoilsResponse failed: %v", err)
	}

	expected := []bool{true, false, true, true, false, false, true, true, true, false}
	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range expected {
		if values[i] != v {
			t.Errorf("values[%d]: expected %v, got %v", i, v, values[i])
		}
	}
}

func TestParseCoilsResponse_BadByteCount(t *testing.T) {
	resp := []byte{0x01, 0x05, 0xCD}
	if _, err := ParseCoilsResponse(resp, 10); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseRegistersResponse(t *testing.T) {
	resp := []byte{0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}
	values, err := ParseRegistersResponse(resp, 3)
	if err != nil {
		t.Fatalf("ParseRegistersResponse failed: %v", err)
	}

	expected := []uint16{0x022B, 0x0000, 0x0064}
	for i, v := range expected {
		if values[i] != v {
			t.Errorf("values[%d]: expected 0x%04X, got 0x%04X", i, v, values[i])
		}
	}
}

func TestParseWriteResponse(t *testing.T) {
	resp := []byte{0x06, 0x00, 0x01, 0x00, 0x03}
	if err := ParseWriteResponse(resp, 0x0001, 0x0003); err != nil {
		t.Errorf("ParseWriteResponse failed: %v", err)
	}
	if err := ParseWriteResponse(resp, 0x0002, 0x0003); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("address mismatch: expected ErrInvalidResponse, got %v", err)
	}
	if err := ParseWriteResponse(resp, 0x0001, 0x0004); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("value mismatch: expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseWriteMultipleResponse(t *testing.T) {
	resp := []byte{0x10, 0x00, 0x01, 0x00, 0x02}
	if err := ParseWriteMultipleResponse(resp, 0x0001, 0x0002); err != nil {
		t.Errorf("ParseWriteMultipleResponse failed: %v", err)
	}
	if err := ParseWriteMultipleResponse(resp, 0x0001, 0x0003); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("quantity mismatch: expected ErrInvalidResponse, got %v", err)
	}
}

func TestExceptionResponse(t *testing.T) {
	pdu := BuildExceptionPDU(FuncReadHoldingRegisters, ExceptionIllegalDataAddress)

	expected := []byte{0x83, 0x02}
	if !bytes.Equal(pdu, expected) {
		t.Errorf("Expected %x, got %x", expected, pdu)
	}

	if !IsExceptionResponse(pdu) {
		t.Error("IsExceptionResponse should be true")
	}
	if IsExceptionResponse([]byte{0x03, 0x02}) {
		t.Error("IsExceptionResponse should be false for a normal response")
	}

	merr := ParseExceptionResponse(pdu)
	if merr == nil {
		t.Fatal("ParseExceptionResponse returned nil")
	}
	if merr.FunctionCode != FuncReadHoldingRegisters {
		t.Errorf("FunctionCode: expected %v, got %v", FuncReadHoldingRegisters, merr.FunctionCode)
	}
	if merr.ExceptionCode != ExceptionIllegalDataAddress {
		t.Errorf("ExceptionCode: expected %v, got %v", ExceptionIllegalDataAddress, merr.ExceptionCode)
	}
}

func TestBoolsToBytes_RoundTrip(t *testing.T) {
	values := []bool{true, false, true, true, false, false, true, true, true}
	packed := BoolsToBytes(values)

	if len(packed) != 2 {
		t.Fatalf("Expected 2 bytes, got %d", len(packed))
	}
	if packed[0] != 0xCD {
		t.Errorf("packed[0]: expected 0xCD, got 0x%02X", packed[0])
	}
	if packed[1] != 0x01 {
		t.Errorf("packed[1]: expected 0x01, got 0x%02X", packed[1])
	}

	unpacked := BytesToBools(packed, len(values))
	for i, v := range values {
		if unpacked[i] != v {
			t.Errorf("unpacked[%d]: expected %v, got %v", i, v, unpacked[i])
		}
	}
}

func TestUint16sToBytes_RoundTrip(t *testing.T) {
	values := []uint16{0x1234, 0xABCD, 0x0000, 0xFFFF}
	raw := Uint16sToBytes(values)

	expected := []byte{0x12, 0x34, 0xAB, 0xCD, 0x00, 0x00, 0xFF, 0xFF}
	if !bytes.Equal(raw, expected) {
		t.Errorf("Expected %x, got %x", expected, raw)
	}

	back := BytesToUint16s(raw)
	for i, v := range values {
		if back[i] != v {
			t.Errorf("back[%d]: expected 0x%04X, got 0x%04X", i, v, back[i])
		}
	}
}
