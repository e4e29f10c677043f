package netio

// fragmentMarker delimits each piece of a UDP message that didn't fit
// in one datagram: two bytes of 0xFF, the literal "TOOBIG", then two
// more bytes of 0xFF — 10 bytes total, grounded on spec.md §4.9/§6's
// fragmentation marker and original_source's UDP writer chunking.
var fragmentMarker = []byte{0xFF, 0xFF, 'T', 'O', 'O', 'B', 'I', 'G', 0xFF, 0xFF}

const fragmentMarkerLen = 10

// splitFragments breaks data into chunks of at most maxChunk bytes, each
// (except the last) followed by fragmentMarker so the reader side can
// tell a continuation datagram from a terminal one.
func splitFragments(data []byte, maxChunk int) [][]byte {
	if maxChunk <= 0 || len(data) <= maxChunk {
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > maxChunk {
		chunk := make([]byte, 0, maxChunk+fragmentMarkerLen)
		chunk = append(chunk, data[:maxChunk]...)
		chunk = append(chunk, fragmentMarker...)
		chunks = append(chunks, chunk)
		data = data[maxChunk:]
	}
	chunks = append(chunks, data)
	return chunks
}

// hasFragmentMarker reports whether datagram ends with fragmentMarker,
// i.e. more fragments follow, and returns the datagram with the marker
// stripped off.
func hasFragmentMarker(datagram []byte) (stripped []byte, more bool) {
	n := len(datagram)
	if n < fragmentMarkerLen {
		return datagram, false
	}
	tail := datagram[n-fragmentMarkerLen:]
	for i, b := range tail {
		if b != fragmentMarker[i] {
			return datagram, false
		}
	}
	return datagram[:n-fragmentMarkerLen], true
}
