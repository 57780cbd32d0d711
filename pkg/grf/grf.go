// Package grf reads Ragnarok Online GRF archives so that model and texture
// files can be imported straight from a client's data.grf.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Faultbox/tmdl/pkg/encoding"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version200 = 0x200

	flagFile      = 0x01
	flagEncrypted = 0x02
	flagMixCrypt  = 0x04

	entryTrailer = 17
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrNotFound           = errors.New("file not found in archive")
	ErrEncrypted          = errors.New("encrypted GRF entries are not supported")
	ErrCorruptTable       = errors.New("corrupt GRF file table")
)

// Archive is an opened GRF archive. Lookups are case-insensitive and accept
// either slash direction.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	entries map[string]*Entry
}

// Header is the fixed 46-byte GRF header.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry describes one file stored in the archive. Name is decoded from
// EUC-KR and uses forward slashes.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Encrypted reports whether the entry data is DES-scrambled.
func (e *Entry) Encrypted() bool {
	return e.Flags&(flagEncrypted|flagMixCrypt) != 0
}

// Open opens a GRF archive file for reading.
func Open(filename string) (*Archive, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	a, err := NewArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the header and file table from r.
func NewArchive(r io.ReaderAt) (*Archive, error) {
	a := &Archive{
		r:       r,
		entries: make(map[string]*Entry),
	}

	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns a copy of the archive header.
func (a *Archive) Header() Header {
	return a.header
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	var sizes [8]byte
	if _, err := a.r.ReadAt(sizes[:], tableOffset); err != nil {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[:4])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressed := make([]byte, compressedSize)
	if _, err := a.r.ReadAt(compressed, tableOffset+8); err != nil {
		return err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	defer zr.Close()

	table := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, table); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	count := int(a.header.FileCount) - int(a.header.Seed) - 7
	offset := 0
	for i := 0; i < count && offset < len(table); i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: unterminated name in entry %d", ErrCorruptTable, i)
		}
		raw := table[offset : offset+nameEnd]
		offset += nameEnd + 1

		if offset+entryTrailer > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}
		entry := &Entry{
			Name:             strings.ReplaceAll(encoding.EUCKRToUTF8(raw), "\\", "/"),
			CompressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			Flags:            table[offset+12],
			Offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += entryTrailer

		// Directory entries carry no file flag.
		if entry.Flags&flagFile != 0 {
			a.entries[encoding.NormalizeGRFPath(entry.Name)] = entry
		}
	}
	return nil
}

// Len returns the number of files in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// List returns every file path in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		result = append(result, e.Name)
	}
	sort.Strings(result)
	return result
}

// Search returns the sorted paths whose lowercase form matches the glob
// pattern. A pattern without glob metacharacters matches as a substring.
func (a *Archive) Search(pattern string) ([]string, error) {
	pattern = encoding.NormalizeGRFPath(pattern)
	glob := strings.ContainsAny(pattern, "*?[")
	if glob {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, err
		}
	}

	var result []string
	for key, e := range a.entries {
		var ok bool
		if glob {
			ok, _ = path.Match(pattern, key)
			if !ok {
				ok, _ = path.Match(pattern, path.Base(key))
			}
		} else {
			ok = strings.Contains(key, pattern)
		}
		if ok {
			result = append(result, e.Name)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Stat returns the entry for name.
func (a *Archive) Stat(name string) (*Entry, bool) {
	e, ok := a.entries[encoding.NormalizeGRFPath(name)]
	return e, ok
}

// Contains checks if a file exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.Stat(name)
	return ok
}

// Read returns the decompressed contents of name.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, ok := a.Stat(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if entry.Encrypted() {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, name)
	}

	data := make([]byte, entry.CompressedSize)
	if _, err := a.r.ReadAt(data, int64(entry.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return data, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	defer zr.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(zr, result); err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return result, nil
}
