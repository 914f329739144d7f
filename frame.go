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
	"fmt"
	"io"
	"sync/atomic"
)

// MBAPHeader is the 7-byte Modbus Application Protocol header that
// prefixes every PDU on a TCP transport.
type MBAPHeader struct {
	TransactionID uint16 // client-assigned, echoed by the server
	ProtocolID    uint16 // always 0 for Modbus
	Length        uint16 // byte count of unit ID + PDU
	UnitID        UnitID
}

// Encode encodes the MBAP header to bytes.
func (h *MBAPHeader) Encode() []byte {
	buf := make([]byte, MBAPHeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.TransactionID)
	binary.BigEndian.PutUint16(buf[2:4], h.ProtocolID)
	binary.BigEndian.PutUint16(buf[4:6], h.Length)
	buf[6] = byte(h.UnitID)
	return buf
}

// Decode decodes the MBAP header from bytes.
func (h *MBAPHeader) Decode(data []byte) error {
	if len(data) < MBAPHeaderSize {
		return fmt.Errorf("%w: MBAP header too short", ErrInvalidFrame)
	}
	h.TransactionID = binary.BigEndian.Uint16(data[0:2])
	h.ProtocolID = binary.BigEndian.Uint16(data[2:4])
	h.Length = binary.BigEndian.Uint16(data[4:6])
	h.UnitID = UnitID(data[6])
	return nil
}

// Frame is a complete Modbus TCP frame (MBAP header + PDU).
type Frame struct {
	Header MBAPHeader
	PDU    []byte
}

// Encode encodes the frame to bytes, computing the length field.
func (f *Frame) Encode() []byte {
	f.Header.Length = uint16(len(f.PDU) + 1) // PDU length + unit ID
	buf := make([]byte, MBAPHeaderSize+len(f.PDU))
	copy(buf, f.Header.Encode())
	copy(buf[MBAPHeaderSize:], f.PDU)
	return buf
}

// validateHeader checks the fields a stream cannot recover from.
func validateHeader(protocolID, length uint16) error {
	if protocolID != ProtocolID {
		return fmt.Errorf("%w: protocol ID %d", ErrInvalidFrame, protocolID)
	}
	if length < 1 || length > MaxPDUSize+1 {
		return fmt.Errorf("%w: length %d", ErrInvalidFrame, length)
	}
	return nil
}

// DecodeFrame decodes a single frame from the front of buf and returns
// it together with the number of bytes consumed.
//
// TCP delivers arbitrary chunk boundaries, so buf may hold a partial
// frame, exactly one frame, or one frame plus the beginning of the
// next. DecodeFrame returns ErrShortFrame until the first six header
// bytes are present (they carry the length field) and again until
// `length` further bytes have arrived; the caller appends more input
// and retries. A wrong protocol ID or an out-of-range length returns
// ErrInvalidFrame, after which the stream cannot be resynchronized.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < MBAPHeaderSize-1 {
		return nil, 0, ErrShortFrame
	}
	protocolID := binary.BigEndian.Uint16(buf[2:4])
	length := binary.BigEndian.Uint16(buf[4:6])
	if err := validateHeader(protocolID, length); err != nil {
		return nil, 0, err
	}
	total := MBAPHeaderSize - 1 + int(length)
	if len(buf) < total {
		return nil, 0, ErrShortFrame
	}

	f := &Frame{
		Header: MBAPHeader{
			TransactionID: binary.BigEndian.Uint16(buf[0:2]),
			ProtocolID:    protocolID,
			Length:        length,
			UnitID:        UnitID(buf[6]),
		},
	}
	f.PDU = make([]byte, length-1)
	copy(f.PDU, buf[MBAPHeaderSize:total])
	return f, total, nil
}

// ReadFrame reads one complete frame from r, blocking until it is
// fully delivered. Callers that own the stream exclusively (the client
// reader loop) use this instead of the buffered DecodeFrame.
func ReadFrame(r io.Reader) (*Frame, error) {
	head := make([]byte, MBAPHeaderSize-1)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	protocolID := binary.BigEndian.Uint16(head[2:4])
	length := binary.BigEndian.Uint16(head[4:6])
	if err := validateHeader(protocolID, length); err != nil {
		return nil, err
	}

	rest := make([]byte, length)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}

	return &Frame{
		Header: MBAPHeader{
			TransactionID: binary.BigEndian.Uint16(head[0:2]),
			ProtocolID:    protocolID,
			Length:        length,
			UnitID:        UnitID(rest[0]),
		},
		PDU: rest[1:],
	}, nil
}

// TransactionIDGenerator allocates 16-bit transaction identifiers from
// an atomic counter, wrapping on overflow.
type TransactionIDGenerator struct {
	counter uint32
}

// Next returns the next transaction ID.
func (g *TransactionIDGenerator) Next() uint16 {
	return uint16(atomic.AddUint32(&g.counter, 1))
}
