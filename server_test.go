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
	"net"
	"testing"
	"time"
)

func TestServer_Addr(t *testing.T) {
	server := NewServer(NewDataStore(10))
	if server.Addr() != nil {
		t.Error("Addr should be nil before Serve")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve(listener)
	defer server.Close()

	// Serve publishes the listener before accepting.
	deadline := time.Now().Add(time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Addr not set")
		}
		time.Sleep(time.Millisecond)
	}
	if server.Addr().String() != listener.Addr().String() {
		t.Errorf("Addr: expected %s, got %s", listener.Addr(), server.Addr())
	}
}

func TestServer_CloseUnblocksServe(t *testing.T) {
	server := NewServer(NewDataStore(10))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	time.Sleep(50 * time.Millisecond)
	if err := server.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("Serve after Close: expected nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	// Second close is a no-op.
	if err := server.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestServer_MaxConnections(t *testing.T) {
	server := NewServer(NewDataStore(10), WithMaxConnections(1))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve(listener)
	defer server.Close()

	addr := listener.Addr().String()

	first, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("first Dial failed: %v", err)
	}
	defer first.Close()

	// Prove the first connection is up before opening the second.
	req := Frame{Header: MBAPHeader{TransactionID: 1, UnitID: 1}, PDU: []byte{0x01, 0x00, 0x00, 0x00, 0x01}}
	if _, err := first.Write(req.Encode()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := ReadFrame(first); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	second, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("second Dial failed: %v", err)
	}
	defer second.Close()

	// The server closes the connection without responding.
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err == nil {
		t.Error("Expected rejected connection to be closed")
	}
}

func TestServer_ActiveConnections(t *testing.T) {
	server := NewServer(NewDataStore(10))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve(listener)
	defer server.Close()

	if server.ActiveConnections() != 0 {
		t.Errorf("ActiveConnections: expected 0, got %d", server.ActiveConnections())
	}

	client := connectTestClient(t, listener.Addr().String())
	if _, err := client.ReadCoils(context.Background(), 0, 1); err != nil {
		t.Fatalf("ReadCoils failed: %v", err)
	}
	if server.ActiveConnections() != 1 {
		t.Errorf("ActiveConnections: expected 1, got %d", server.ActiveConnections())
	}

	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.ActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Connection not reaped after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_MetricsCounts(t *testing.T) {
	server := NewServer(NewDataStore(100))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve(listener)
	defer server.Close()

	client := connectTestClient(t, listener.Addr().String())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.ReadCoils(ctx, 0, 1); err != nil {
			t.Fatalf("ReadCoils failed: %v", err)
		}
	}

	m := server.Metrics()
	if m.ConnectionsTotal.Value() != 1 {
		t.Errorf("ConnectionsTotal: expected 1, got %d", m.ConnectionsTotal.Value())
	}
	if m.RequestsTotal.Value() != 3 {
		t.Errorf("RequestsTotal: expected 3, got %d", m.RequestsTotal.Value())
	}

	stats := m.Latency.Stats()
	if stats.Count != 3 {
		t.Errorf("Latency count: expected 3, got %d", stats.Count)
	}
}

func TestServer_InvalidFrameCounted(t *testing.T) {
	server := NewServer(NewDataStore(100))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go server.Serve(listener)
	defer server.Close()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// Length field 0 is invalid.
	bad := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01}
	if _, err := conn.Write(bad); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("Expected connection closed after invalid frame")
	}

	if server.Metrics().FramesInvalid.Value() != 1 {
		t.Errorf("FramesInvalid: expected 1, got %d", server.Metrics().FramesInvalid.Value())
	}
}

func TestServer_ListenAndServeBadAddr(t *testing.T) {
	server := NewServer(NewDataStore(10))
	if err := server.ListenAndServe("not-an-address"); err == nil {
		t.Error("Expected error for bad address")
	}
}
