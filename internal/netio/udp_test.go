package netio

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestUDPReaderWriterRoundTrip(t *testing.T) {
	reader, err := NewUDPReader(0, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	port := reader.conn.LocalAddr().(*net.UDPAddr).Port
	writer, err := NewUDPWriter("127.0.0.1", port)
	if err != nil {
		t.Fatal(err)
	}
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
	if string(msg.([]byte)) != "hello" {
		t.Fatalf("got %q", msg)
	}
}
