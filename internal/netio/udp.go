// Package netio implements the wire adapters of spec.md §4.9: UDP, TCP,
// Serial, Unix-domain sockets, and a Modbus poller, grounded on
// original_source/logger/{readers,writers}/{udp,tcp}_*.py.
package netio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oceantech/rvdaq/internal/formats"
)

// defaultMTU is used when this process's MTU autodetection (done once,
// lazily, the first time any UDPWriter needs it) fails — matching
// spec.md §9's "MTU probed once per process" design note.
const defaultMTU = 1500

// udpFragmentHeadroom trims off IP/UDP header space plus the 10-byte
// fragment marker itself when deciding a safe chunk size.
const udpFragmentHeadroom = 48

var (
	mtuOnce   sync.Once
	mtuValue  int
)

// detectedMTU probes every network interface once per process and
// returns the smallest active MTU found, or defaultMTU if none can be
// read.
func detectedMTU() int {
	mtuOnce.Do(func() {
		mtuValue = defaultMTU
		ifaces, err := net.Interfaces()
		if err != nil {
			return
		}
		best := 0
		for _, ifc := range ifaces {
			if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
				continue
			}
			if ifc.MTU <= 0 {
				continue
			}
			if best == 0 || ifc.MTU < best {
				best = ifc.MTU
			}
		}
		if best > 0 {
			mtuValue = best
		}
	})
	return mtuValue
}

// UDPWriter writes each record as a (possibly fragmented) UDP datagram,
// grounded on original_source/logger/writers/udp_writer.py: a broadcast-
// or multicast-capable UDP socket, with messages larger than the
// process MTU split via splitFragments.
type UDPWriter struct {
	conn    *net.UDPConn
	addr    *net.UDPAddr
}

// NewUDPWriter opens a UDP socket targeting host:port. An empty host
// broadcasts on the given port; a multicast-range host is sent to as a
// group address (the writer does not join the group).
func NewUDPWriter(host string, port int) (*UDPWriter, error) {
	addr := &net.UDPAddr{Port: port}
	if host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("netio: UDPWriter: invalid host %q", host)
		}
		addr.IP = ip
	} else {
		addr.IP = net.IPv4bcast
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("netio: UDPWriter: dial %s:%d: %w", host, port, err)
	}
	return &UDPWriter{conn: conn, addr: addr}, nil
}

func (w *UDPWriter) InputFormat() formats.Format { return formats.Bytes }

func (w *UDPWriter) CanAccept(source formats.Format) bool {
	return formats.Bytes.CanAccept(source)
}

// Write sends rec as one or more UDP datagrams, fragmenting if it
// exceeds this process's detected MTU.
func (w *UDPWriter) Write(rec any) error {
	var data []byte
	switch v := rec.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("netio: UDPWriter expects []byte or string, got %T", rec)
	}

	maxChunk := detectedMTU() - udpFragmentHeadroom
	for _, chunk := range splitFragments(data, maxChunk) {
		if _, err := w.conn.Write(chunk); err != nil {
			return fmt.Errorf("netio: UDPWriter: write: %w", err)
		}
	}
	return nil
}

func (w *UDPWriter) Close() error { return w.conn.Close() }

// UDPReader listens for UDP datagrams on port, optionally joining a
// multicast group, and reassembles fragmented messages using the
// fragment marker, grounded on
// original_source/logger/readers/udp_reader.py.
type UDPReader struct {
	conn       *net.UDPConn
	bufferSize int

	partial []byte
}

// NewUDPReader listens on port. When multicastGroup is non-empty, it
// also joins that multicast group on the given interface (empty
// interfaceName picks the default).
func NewUDPReader(port int, multicastGroup, interfaceName string, bufferSize int) (*UDPReader, error) {
	if bufferSize <= 0 {
		bufferSize = 4096
	}

	if multicastGroup != "" {
		group := net.ParseIP(multicastGroup)
		if group == nil {
			return nil, fmt.Errorf("netio: UDPReader: invalid multicast group %q", multicastGroup)
		}
		var iface *net.Interface
		if interfaceName != "" {
			found, err := net.InterfaceByName(interfaceName)
			if err != nil {
				return nil, fmt.Errorf("netio: UDPReader: interface %q: %w", interfaceName, err)
			}
			iface = found
		}
		conn, err := net.ListenMulticastUDP("udp", iface, &net.UDPAddr{IP: group, Port: port})
		if err != nil {
			return nil, fmt.Errorf("netio: UDPReader: listen multicast %s:%d: %w", multicastGroup, port, err)
		}
		return &UDPReader{conn: conn, bufferSize: bufferSize}, nil
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("netio: UDPReader: listen %d: %w", port, err)
	}
	return &UDPReader{conn: conn, bufferSize: bufferSize}, nil
}

func (r *UDPReader) OutputFormat() formats.Format { return formats.Bytes }

// Read returns the next complete (reassembled) message. ctx cancellation
// is honored via a read deadline set from ctx.Done(), since net.UDPConn
// has no native context-aware Read.
func (r *UDPReader) Read(ctx context.Context) (any, error) {
	buf := make([]byte, r.bufferSize)
	r.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { r.conn.SetReadDeadline(time.Now()) })
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := r.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("netio: UDPReader: read: %w", err)
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		stripped, more := hasFragmentMarker(datagram)
		r.partial = append(r.partial, stripped...)
		if more {
			continue
		}
		msg := r.partial
		r.partial = nil
		return msg, nil
	}
}

func (r *UDPReader) Close() error { return r.conn.Close() }
