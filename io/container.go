package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/qcloud"
)

/*
The binary format used for particle containers is as follows:
    |-- 1 --||-- ... 2 ... --|

    1 - (qcloud.Header) Six int32 values: particle count, downsampling
        factor, and the t, z, y, x dimensions of the downsampled grid.
    2 - ([]qcloud.Particle) Contiguous block of (t, z, y, x int32, q float32)
        records, 20 bytes each.

Everything is little endian. There is no version field, so the size check
in OpenContainer is the only guard against reading something else.
*/

var end = binary.LittleEndian

// WriteContainer writes a header and its particles to wr.
func WriteContainer(wr io.Writer, hd qcloud.Header, ps []qcloud.Particle) error {
	if int(hd.Count) != len(ps) {
		return fmt.Errorf(
			"Header count %d does not match particle count %d.",
			hd.Count, len(ps),
		)
	}

	bw := bufio.NewWriter(wr)
	if err := binary.Write(bw, end, &hd); err != nil {
		return err
	}
	if err := binary.Write(bw, end, ps); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteContainerFile writes a container to the given path. The file is
// written next to its destination and renamed into place, so a failed write
// never leaves a truncated container behind.
func WriteContainerFile(path string, hd qcloud.Header, ps []qcloud.Particle) error {
	return writeAtomic(path, func(f *os.File) error {
		return WriteContainer(f, hd, ps)
	})
}

// writeAtomic calls write on a temporary file in the directory of path and
// renames it to path once write and the sync have both succeeded.
func writeAtomic(path string, write func(f *os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err = write(f); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadContainerHeader reads a header from rd.
func ReadContainerHeader(rd io.Reader) (qcloud.Header, error) {
	hd := qcloud.Header{}
	err := binary.Read(rd, end, &hd)
	return hd, err
}

// ContainerReader reads the particles of a container file in chunks.
type ContainerReader struct {
	f         *os.File
	br        *bufio.Reader
	path      string
	hd        qcloud.Header
	remaining int
}

// OpenContainer opens the container at path and reads its header. The
// header's count is checked against the file size.
func OpenContainer(path string) (*ContainerReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qcloud.FormatError(path, err, "cannot open container")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, qcloud.FormatError(path, err, "cannot stat container")
	}

	br := bufio.NewReader(f)
	hd, err := ReadContainerHeader(br)
	if err != nil {
		f.Close()
		return nil, qcloud.FormatError(path, err, "cannot read header")
	}

	if hd.Count < 0 {
		f.Close()
		return nil, qcloud.FormatError(path, nil,
			"negative particle count %d", hd.Count)
	}

	expected := int64(qcloud.HeaderSize) + int64(hd.Count)*qcloud.ParticleSize
	if info.Size() != expected {
		f.Close()
		return nil, qcloud.FormatError(path, nil,
			"file is %d bytes, but a header with %d particles requires %d",
			info.Size(), hd.Count, expected,
		)
	}

	return &ContainerReader{f, br, path, hd, int(hd.Count)}, nil
}

// Header returns the container's header.
func (cr *ContainerReader) Header() qcloud.Header { return cr.hd }

// Remaining returns the number of particles which have not been read yet.
func (cr *ContainerReader) Remaining() int { return cr.remaining }

// ReadChunk reads up to len(buf) particles into buf and returns the number
// read. io.EOF is returned once every particle has been read.
func (cr *ContainerReader) ReadChunk(buf []qcloud.Particle) (int, error) {
	if cr.remaining == 0 {
		return 0, io.EOF
	}

	n := len(buf)
	if n > cr.remaining {
		n = cr.remaining
	}
	if err := binary.Read(cr.br, end, buf[:n]); err != nil {
		return 0, qcloud.FormatError(cr.path, err, "cannot read particles")
	}
	cr.remaining -= n
	return n, nil
}

// Close closes the underlying file.
func (cr *ContainerReader) Close() error { return cr.f.Close() }

// ReadContainerFile reads an entire container into memory.
func ReadContainerFile(path string) (qcloud.Header, []qcloud.Particle, error) {
	cr, err := OpenContainer(path)
	if err != nil {
		return qcloud.Header{}, nil, err
	}
	defer cr.Close()

	ps := make([]qcloud.Particle, cr.Remaining())
	if len(ps) > 0 {
		if _, err := cr.ReadChunk(ps); err != nil {
			return qcloud.Header{}, nil, err
		}
	}
	return cr.Header(), ps, nil
}
