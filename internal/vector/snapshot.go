package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Snapshot format: dimension (4), entry count (4), then per entry the passage
// id, text, source (each uint32 length + bytes), page (4), chunk index (4),
// and the vector (dimension*4 bytes), all little-endian. The snapshot is
// written to a temp file and renamed so a crash mid-write never corrupts the
// previous durable state.

// save writes the snapshot. Caller must hold the write lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	w := bufio.NewWriter(f)
	err = func() error {
		if err := binary.Write(w, binary.LittleEndian, uint32(s.dimensions)); err != nil {
			return fmt.Errorf("write dimensions: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(s.entries))); err != nil {
			return fmt.Errorf("write count: %w", err)
		}
		for i := range s.entries {
			if err := writeEntry(w, &s.entries[i]); err != nil {
				return fmt.Errorf("write entry %d: %w", i, err)
			}
		}
		return w.Flush()
	}()
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// load reads the snapshot at s.path and replaces the in-memory contents.
// The recorded dimension must match the store's.
func (s *Store) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != s.dimensions {
		return fmt.Errorf("%w: snapshot has %d, store expects %d", ErrDimensionMismatch, dim, s.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	entries := make([]Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		e, err := readEntry(r, s.dimensions)
		if err != nil {
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	s.entries = entries
	return nil
}

func writeEntry(w io.Writer, e *Entry) error {
	for _, str := range []string{e.Passage.ID, e.Passage.Text, e.Passage.SourceDocument} {
		if err := writeString(w, str); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(e.Passage.PageNumber)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(e.Passage.ChunkIndex)); err != nil {
		return err
	}
	buf := make([]byte, len(e.Vector)*4)
	for i, v := range e.Vector {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readEntry(r io.Reader, dimensions int) (Entry, error) {
	var e Entry
	var err error
	if e.Passage.ID, err = readString(r); err != nil {
		return e, err
	}
	if e.Passage.Text, err = readString(r); err != nil {
		return e, err
	}
	if e.Passage.SourceDocument, err = readString(r); err != nil {
		return e, err
	}
	var page, chunkIndex uint32
	if err := binary.Read(r, binary.LittleEndian, &page); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &chunkIndex); err != nil {
		return e, err
	}
	e.Passage.PageNumber = int(page)
	e.Passage.ChunkIndex = int(chunkIndex)
	buf := make([]byte, dimensions*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return e, err
	}
	e.Vector = make([]float32, dimensions)
	for i := range e.Vector {
		e.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : (i+1)*4]))
	}
	return e, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
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
