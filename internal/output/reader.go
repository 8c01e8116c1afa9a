package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/cascade/internal/phys"
)

// Header is the decoded file preamble.
type Header struct {
	FormatVersion uint32
	EngineVersion string
	Fields        string
}

// Record is one particle of a block.
type Record struct {
	ID       int32
	PDG      int32
	Position phys.FourVector
	Momentum phys.FourVector
}

// Block is one snapshot emission.
type Block struct {
	Event     int32
	Particles []Record
}

// ReadHeader decodes and checks the file preamble.
func ReadHeader(r io.Reader) (Header, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Header{}, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != Magic {
		return Header{}, fmt.Errorf("not a cascade binary file (magic %q)", magic)
	}

	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.FormatVersion); err != nil {
		return Header{}, fmt.Errorf("read format version: %w", err)
	}
	if h.FormatVersion != FormatVersion {
		return Header{}, fmt.Errorf("unsupported format version %d (want %d)", h.FormatVersion, FormatVersion)
	}

	var err error
	if h.EngineVersion, err = readString(r); err != nil {
		return Header{}, fmt.Errorf("read engine version: %w", err)
	}
	if h.Fields, err = readString(r); err != nil {
		return Header{}, fmt.Errorf("read field list: %w", err)
	}
	return h, nil
}

// ReadBlock decodes the next snapshot block. Returns io.EOF cleanly at
// the end of the stream.
func ReadBlock(r io.Reader) (Block, error) {
	var npart int32
	if err := binary.Read(r, binary.LittleEndian, &npart); err != nil {
		if errors.Is(err, io.EOF) {
			return Block{}, io.EOF
		}
		return Block{}, fmt.Errorf("read block size: %w", err)
	}
	if npart < 0 {
		return Block{}, fmt.Errorf("negative block size %d", npart)
	}

	var blk Block
	if err := binary.Read(r, binary.LittleEndian, &blk.Event); err != nil {
		return Block{}, fmt.Errorf("read block event: %w", err)
	}

	blk.Particles = make([]Record, npart)
	for i := range blk.Particles {
		rec := &blk.Particles[i]
		var ints [2]int32
		if err := binary.Read(r, binary.LittleEndian, &ints); err != nil {
			return Block{}, fmt.Errorf("read particle %d ids: %w", i, err)
		}
		rec.ID, rec.PDG = ints[0], ints[1]
		if err := binary.Read(r, binary.LittleEndian, (*[4]float64)(&rec.Position)); err != nil {
			return Block{}, fmt.Errorf("read particle %d position: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, (*[4]float64)(&rec.Momentum)); err != nil {
			return Block{}, fmt.Errorf("read particle %d momentum: %w", i, err)
		}
	}
	return blk, nil
}

// ReadAll decodes a whole stream: the header and every block.
func ReadAll(r io.Reader) (Header, []Block, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	blocks := []Block{}
	for {
		blk, err := ReadBlock(r)
		if errors.Is(err, io.EOF) {
			return h, blocks, nil
		}
		if err != nil {
			return Header{}, nil, err
		}
		blocks = append(blocks, blk)
	}
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
