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

func TestMBAPHeader_Encode(t *testing.T) {
	header := MBAPHeader{
		TransactionID: 0x0001,
		ProtocolID:    0x0000,
		Length:        0x0006,
		UnitID:        0x01,
	}

	expected := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01}
	result := header.Encode()

	if !bytes.Equal(result, expected) {
		t.Errorf("Expected %x, got %x", expected, result)
	}
}

func TestMBAPHeader_Decode(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01}

	var header MBAPHeader
	if err := header.Decode(data); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if header.TransactionID != 0x0001 {
		t.Errorf("TransactionID: expected 0x0001, got 0x%04X", header.TransactionID)
	}
	if header.ProtocolID != 0x0000 {
		t.Errorf("ProtocolID: expected 0x0000, got 0x%04X", header.ProtocolID)
	}
	if header.Length != 0x0006 {
		t.Errorf("Length: expected 0x0006, got 0x%04X", header.Length)
	}
	if header.UnitID != 0x01 {
		t.Errorf("UnitID: expected 0x01, got 0x%02X", header.UnitID)
	}
}

func TestMBAPHeader_Decode_TooShort(t *testing.T) {
	var header MBAPHeader
	if err := header.Decode([]byte{0x00, 0x01, 0x00}); err == nil {
		t.Error("Expected error for short header")
	}
}

func TestFrame_Encode(t *testing.T) {
	frame := Frame{
		Header: MBAPHeader{
			TransactionID: 0x1234,
			ProtocolID:    0,
			UnitID:        0x11,
		},
		PDU: []byte{0x03, 0x00, 0x0A, 0x00, 0x05},
	}

	expected := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x06, 0x11, 0x03, 0x00, 0x0A, 0x00, 0x05}
	result := frame.Encode()

	if !bytes.Equal(result, expected) {
		t.Errorf("Expected %x, got %x", expected, result)
	}
	if frame.Header.Length != 6 {
		t.Errorf("Length: expected 6, got %d", frame.Header.Length)
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	orig := Frame{
		Header: MBAPHeader{
			TransactionID: 42,
			ProtocolID:    0,
			UnitID:        1,
		},
		PDU: []byte{0x01, 0x00, 0x00, 0x00, 0x08},
	}
	wire := orig.Encode()

	frame, consumed, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if consumed != len(wire) {
		t.Errorf("Consumed: expected %d, got %d", len(wire), consumed)
	}
	if frame.Header.TransactionID != 42 {
		t.Errorf("TransactionID: expected 42, got %d", frame.Header.TransactionID)
	}
	if frame.Header.UnitID != 1 {
		t.Errorf("UnitID: expected 1, got %d", frame.Header.UnitID)
	}
	if !bytes.Equal(frame.PDU, orig.PDU) {
		t.Errorf("PDU: expected %x, got %x", orig.PDU, frame.PDU)
	}
}

func TestDecodeFrame_ByteAtATime(t *testing.T) {
	orig := Frame{
		Header: MBAPHeader{TransactionID: 7, UnitID: 3},
		PDU:    []byte{0x06, 0x00, 0x05, 0x04, 0xD2},
	}
	wire := orig.Encode()

	// Every prefix short of the full frame must report a short frame.
	for i := 0; i < len(wire); i++ {
		_, _, err := DecodeFrame(wire[:i])
		if !errors.Is(err, ErrShortFrame) {
			t.Fatalf("prefix of %d bytes: expected ErrShortFrame, got %v", i, err)
		}
	}

	frame, consumed, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("DecodeFrame failed on complete frame: %v", err)
	}
	if consumed != len(wire) {
		t.Errorf("Consumed: expected %d, got %d", len(wire), consumed)
	}
	if !bytes.Equal(frame.PDU, orig.PDU) {
		t.Errorf("PDU: expected %x, got %x", orig.PDU, frame.PDU)
	}
}

func TestDecodeFrame_TwoFramesInBuffer(t *testing.T) {
	first := Frame{Header: MBAPHeader{TransactionID: 1, UnitID: 1}, PDU: []byte{0x03, 0x02, 0x12, 0x34}}
	second := Frame{Header: MBAPHeader{TransactionID: 2, UnitID: 1}, PDU: []byte{0x01, 0x01, 0x01}}

	buf := append(first.Encode(), second.Encode()...)

	frame, consumed, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("first DecodeFrame failed: %v", err)
	}
	if frame.Header.TransactionID != 1 {
		t.Errorf("first TransactionID: expected 1, got %d", frame.Header.TransactionID)
	}

	buf = buf[consumed:]
	frame, consumed, err = DecodeFrame(buf)
	if err != nil {
		t.Fatalf("second DecodeFrame failed: %v", err)
	}
	if frame.Header.TransactionID != 2 {
		t.Errorf("second TransactionID: expected 2, got %d", frame.Header.TransactionID)
	}
	if consumed != len(buf) {
		t.Errorf("second consumed: expected %d, got %d", len(buf), consumed)
	}
}

func TestDecodeFrame_InvalidProtocolID(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x05, 0x00, 0x02, 0x01, 0x03}
	_, _, err := DecodeFrame(data)
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestDecodeFrame_InvalidLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint16
	}{
		{"zero", 0},
		{"too large", 255},
		{"max uint16", 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte{0x00, 0x01, 0x00, 0x00, byte(tt.length >> 8), byte(tt.length), 0x01}
			_, _, err := DecodeFrame(data)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Expected ErrInvalidFrame, got %v", err)
			}
		})
	}
}

func TestDecodeFrame_MaxLength(t *testing.T) {
	// Length 254 is the largest legal value: unit ID plus a 253-byte PDU.
	pdu := make([]byte, MaxPDUSize)
	pdu[0] = 0x03
	frame := Frame{Header: MBAPHeader{TransactionID: 9, UnitID: 2}, PDU: pdu}
	wire := frame.Encode()

	decoded, consumed, err := DecodeFrame(wire)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if consumed != len(wire) {
		t.Errorf("Consumed: expected %d, got %d", len(wire), consumed)
	}
	if len(decoded.PDU) != MaxPDUSize {
		t.Errorf("PDU size: expected %d, got %d", MaxPDUSize, len(decoded.PDU))
	}
}

func TestReadFrame(t *testing.T) {
	orig := Frame{
		Header: MBAPHeader{TransactionID: 5, UnitID: 2},
		PDU:    []byte{0x04, 0x00, 0x01, 0x00, 0x02},
	}

	frame, err := ReadFrame(bytes.NewReader(orig.Encode()))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if frame.Header.TransactionID != 5 {
		t.Errorf("TransactionID: expected 5, got %d", frame.Header.TransactionID)
	}
	if frame.Header.UnitID != 2 {
		t.Errorf("UnitID: expected 2, got %d", frame.Header.UnitID)
	}
	if !bytes.Equal(frame.PDU, orig.PDU) {
		t.Errorf("PDU: expected %x, got %x", orig.PDU, frame.PDU)
	}
}

func TestReadFrame_InvalidProtocolID(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFF, 0xFF, 0x00, 0x02, 0x01, 0x03}
	if _, err := ReadFrame(bytes.NewReader(data)); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestTransactionIDGenerator(t *testing.T) {
	var gen TransactionIDGenerator

	first := gen.Next()
	second := gen.Next()
	if second == first {
		t.Error("Expected distinct consecutive transaction IDs")
	}
}

func TestTransactionIDGenerator_Wraps(t *testing.T) {
	var gen TransactionIDGenerator
	seen := make(map[uint16]bool)
	for i := 0; i < 70000; i++ {
		seen[gen.Next()] = true
	}
	// All 65536 values show up once the counter wraps.
	if len(seen) != 65536 {
		t.Errorf("Expected full 16-bit coverage, got %d distinct IDs", len(seen))
	}
}
