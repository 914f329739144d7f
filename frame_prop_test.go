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

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func TestFrameEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := &Frame{
			Header: MBAPHeader{
				TransactionID: rapid.Uint16().Draw(t, "transactionID"),
				ProtocolID:    ProtocolID,
				UnitID:        UnitID(rapid.Byte().Draw(t, "unitID")),
			},
			PDU: rapid.SliceOfN(rapid.Byte(), 1, MaxPDUSize).Draw(t, "pdu"),
		}

		raw := frame.Encode()

		decoded, consumed, err := DecodeFrame(raw)
		if err != nil {
			t.Fatalf("error while decoding: %+v", err)
		}
		if consumed != len(raw) {
			t.Fatalf("consumed %d of %d bytes", consumed, len(raw))
		}

		if !cmp.Equal(frame, decoded) {
			t.Errorf("invalid frame: %s", cmp.Diff(frame, decoded))
		}
	})
}

func TestFrameDecodePrefixes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := &Frame{
			Header: MBAPHeader{
				TransactionID: rapid.Uint16().Draw(t, "transactionID"),
				ProtocolID:    ProtocolID,
				UnitID:        UnitID(rapid.Byte().Draw(t, "unitID")),
			},
			PDU: rapid.SliceOfN(rapid.Byte(), 1, MaxPDUSize).Draw(t, "pdu"),
		}

		raw := frame.Encode()
		cut := rapid.IntRange(0, len(raw)-1).Draw(t, "cut")

		if _, _, err := DecodeFrame(raw[:cut]); !errors.Is(err, ErrShortFrame) {
			t.Fatalf("prefix of %d bytes: expected ErrShortFrame, got %v", cut, err)
		}
	})
}

func TestFrameDecodeIgnoresTrailingBytes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := &Frame{
			Header: MBAPHeader{
				TransactionID: rapid.Uint16().Draw(t, "transactionID"),
				ProtocolID:    ProtocolID,
				UnitID:        UnitID(rapid.Byte().Draw(t, "unitID")),
			},
			PDU: rapid.SliceOfN(rapid.Byte(), 1, MaxPDUSize).Draw(t, "pdu"),
		}

		raw := frame.Encode()
		trailing := rapid.SliceOf(rapid.Byte()).Draw(t, "trailing")

		decoded, consumed, err := DecodeFrame(append(append([]byte{}, raw...), trailing...))
		if err != nil {
			t.Fatalf("error while decoding: %+v", err)
		}
		if consumed != len(raw) {
			t.Fatalf("consumed %d, frame is %d bytes", consumed, len(raw))
		}
		if !bytes.Equal(decoded.PDU, frame.PDU) {
			t.Errorf("invalid pdu: %s", cmp.Diff(frame.PDU, decoded.PDU))
		}
	})
}
