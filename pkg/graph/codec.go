package graph

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptSnapshot is returned by Decode for input that is not a snapshot
// written by Encode, or one that was damaged in storage.
var ErrCorruptSnapshot = errors.New("corrupt graph snapshot")

const (
	codecMagic   = "BCNG"
	codecVersion = 1
	headerSize   = len(codecMagic) + 1 + 4
)

// wireGraph is the gob payload. Each undirected edge is stored once, in the
// upper list of its lower-positioned endpoint.
type wireGraph struct {
	IDs    []int64
	Counts []int32
	Upper  []int32
}

// Encode writes s to w.
//
// Layout: [4-byte magic][1-byte version][4-byte CRC32 of payload][zstd(payload)]
// where payload is the gob-encoded upper-triangle adjacency.
func Encode(w io.Writer, s *Store) error {
	wire := wireGraph{
		IDs:    s.ids,
		Counts: make([]int32, len(s.ids)),
		Upper:  make([]int32, 0, s.edges),
	}
	for p := range s.ids {
		for _, n := range s.adjacent(int32(p)) {
			if int(n) > p {
				wire.Upper = append(wire.Upper, n)
				wire.Counts[p]++
			}
		}
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&wire); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}

	header := make([]byte, headerSize)
	copy(header, codecMagic)
	header[len(codecMagic)] = codecVersion
	binary.BigEndian.PutUint32(header[len(codecMagic)+1:], crc32.ChecksumIEEE(payload.Bytes()))
	if _, err := w.Write(header); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := payload.WriteTo(zw); err != nil {
		zw.Close()
		return fmt.Errorf("compress snapshot: %w", err)
	}
	return zw.Close()
}

// Decode reads a snapshot written by Encode. Any framing, checksum or
// structural problem is reported as ErrCorruptSnapshot.
func Decode(r io.Reader) (*Store, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptSnapshot, err)
	}
	if string(header[:len(codecMagic)]) != codecMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if v := header[len(codecMagic)]; v != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, v)
	}
	storedCRC := binary.BigEndian.Uint32(header[len(codecMagic)+1:])

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptSnapshot, err)
	}
	if computed := crc32.ChecksumIEEE(payload); computed != storedCRC {
		return nil, fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorruptSnapshot, storedCRC, computed)
	}

	var wire wireGraph
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: gob decode: %v", ErrCorruptSnapshot, err)
	}
	return fromWire(&wire)
}

func fromWire(w *wireGraph) (*Store, error) {
	n := len(w.IDs)
	if len(w.Counts) != n {
		return nil, fmt.Errorf("%w: %d ids but %d counts", ErrCorruptSnapshot, n, len(w.Counts))
	}
	for i := 1; i < n; i++ {
		if w.IDs[i] <= w.IDs[i-1] {
			return nil, fmt.Errorf("%w: ids not strictly ascending at %d", ErrCorruptSnapshot, i)
		}
	}

	degree := make([]int, n)
	at := 0
	for p := 0; p < n; p++ {
		c := int(w.Counts[p])
		if c < 0 || at+c > len(w.Upper) {
			return nil, fmt.Errorf("%w: neighbour count out of range at %d", ErrCorruptSnapshot, p)
		}
		prev := int32(p)
		for _, q := range w.Upper[at : at+c] {
			if q <= prev || int(q) >= n {
				return nil, fmt.Errorf("%w: bad neighbour %d for node %d", ErrCorruptSnapshot, q, p)
			}
			prev = q
			degree[p]++
			degree[q]++
		}
		at += c
	}
	if at != len(w.Upper) {
		return nil, fmt.Errorf("%w: %d trailing neighbours", ErrCorruptSnapshot, len(w.Upper)-at)
	}

	offsets := make([]int, n+1)
	for p := 0; p < n; p++ {
		if degree[p] == 0 {
			return nil, fmt.Errorf("%w: isolated node %d", ErrCorruptSnapshot, w.IDs[p])
		}
		offsets[p+1] = offsets[p] + degree[p]
	}

	// Lower neighbours of q are filled in ascending order as p increases,
	// then its upper neighbours follow, so every list comes out sorted.
	nbrs := make([]int32, offsets[n])
	fill := make([]int, n)
	copy(fill, offsets[:n])
	at = 0
	for p := 0; p < n; p++ {
		for _, q := range w.Upper[at : at+int(w.Counts[p])] {
			nbrs[fill[q]] = int32(p)
			fill[q]++
		}
		at += int(w.Counts[p])
	}
	at = 0
	for p := 0; p < n; p++ {
		for _, q := range w.Upper[at : at+int(w.Counts[p])] {
			nbrs[fill[p]] = q
			fill[p]++
		}
		at += int(w.Counts[p])
	}

	return newStore(w.IDs, offsets, nbrs, len(w.Upper)), nil
}

// Marshal returns the Encode form of s.
func Marshal(s *Store) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (*Store, error) {
	return Decode(bytes.NewReader(data))
}
