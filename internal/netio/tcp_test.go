package netio

import (
	"context"
	"testing"
	"time"
)

func TestTCPReaderWriterRoundTrip(t *testing.T) {
	reader, err := NewTCPReaderListen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	addr := reader.listener.Addr().String()
	writer := NewTCPWriter(addr)
	defer writer.Close()

	if err := writer.Write("hello"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := reader.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "hello" {
		t.Fatalf("got %q", msg)
	}
}
