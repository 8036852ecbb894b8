// Package logstore implements loggerd's on-disk log format: a sequence of
// self-describing, little-endian binary blocks (header, entry, field,
// checkpoint) that can be forward-scanned even when a reader only partially
// understands the format version.
package logstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Magic is the fixed 8-byte file identifier at offset 0.
var Magic = [8]byte{'Q', 'L', 'O', 'G', 'F', 'I', 'L', 'E'}

// Version is the only on-disk format version this package understands.
const Version = 1

// MaxFieldSize bounds a single field's key or value length, matching the
// original implementation's cap.
const MaxFieldSize = 48000

// BlockType tags the kind of block that follows a block header.
type BlockType uint8

const (
	BlockCheckpoint BlockType = 0
	BlockEntry      BlockType = 1
	BlockField      BlockType = 2
)

// HeaderBlock is the fixed-size record at the start of every log file.
type HeaderBlock struct {
	Version                   uint8
	Compression               uint8
	MachineID                 uint32
	TimeMin                   time.Time
	TimeMax                   time.Time
	FirstHashBlockOffset      uint64
	FirstEntryBlockOffset     uint64
	FirstCheckpointBlockOffset uint64
}

// HeaderSize is the exact on-disk size of a HeaderBlock.
const HeaderSize = 8 + 1 + 1 + 2 + 4 + 8 + 8 + 8 + 8 + 8

// Validate checks the magic and version read from disk.
func (h HeaderBlock) Validate(magic [8]byte) error {
	if magic != Magic {
		return errors.New("logstore: invalid magic number")
	}
	if h.Version != Version {
		return fmt.Errorf("logstore: unsupported version %d", h.Version)
	}
	return nil
}

// WriteHeaderBlock writes h to w at the current offset.
func WriteHeaderBlock(w io.Writer, h HeaderBlock) error {
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, Magic[:]...)
	buf = append(buf, h.Version, h.Compression)
	buf = binary.LittleEndian.AppendUint16(buf, 0) // reserved
	buf = binary.LittleEndian.AppendUint32(buf, h.MachineID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.TimeMin.UnixMicro()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.TimeMax.UnixMicro()))
	buf = binary.LittleEndian.AppendUint64(buf, h.FirstHashBlockOffset)
	buf = binary.LittleEndian.AppendUint64(buf, h.FirstEntryBlockOffset)
	buf = binary.LittleEndian.AppendUint64(buf, h.FirstCheckpointBlockOffset)
	_, err := w.Write(buf)
	return err
}

// ReadHeaderBlock reads a HeaderBlock from r, which must be positioned at
// offset 0.
func ReadHeaderBlock(r io.Reader) (HeaderBlock, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return HeaderBlock{}, err
	}
	var magic [8]byte
	copy(magic[:], buf[0:8])

	h := HeaderBlock{
		Version:     buf[8],
		Compression: buf[9],
		MachineID:   binary.LittleEndian.Uint32(buf[12:16]),
		TimeMin:     time.UnixMicro(int64(binary.LittleEndian.Uint64(buf[16:24]))).UTC(),
		TimeMax:     time.UnixMicro(int64(binary.LittleEndian.Uint64(buf[24:32]))).UTC(),

		FirstHashBlockOffset:       binary.LittleEndian.Uint64(buf[32:40]),
		FirstEntryBlockOffset:      binary.LittleEndian.Uint64(buf[40:48]),
		FirstCheckpointBlockOffset: binary.LittleEndian.Uint64(buf[48:56]),
	}
	if err := h.Validate(magic); err != nil {
		return HeaderBlock{}, err
	}
	return h, nil
}

// blockHeader precedes every non-header block: a type tag and a
// self-describing total size, which is what lets a reader that only
// partially understands the format skip unknown or truncated blocks.
type blockHeader struct {
	Type BlockType
	Size uint64
}

const blockHeaderSize = 1 + 8

func writeBlockHeader(w io.Writer, h blockHeader) error {
	buf := make([]byte, 0, blockHeaderSize)
	buf = append(buf, byte(h.Type))
	buf = binary.LittleEndian.AppendUint64(buf, h.Size)
	_, err := w.Write(buf)
	return err
}

func readBlockHeader(r io.Reader) (blockHeader, error) {
	buf := make([]byte, blockHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return blockHeader{}, err
	}
	return blockHeader{Type: BlockType(buf[0]), Size: binary.LittleEndian.Uint64(buf[1:9])}, nil
}

// FieldBlock holds one key/value pair referenced by an EntryBlock.
type FieldBlock struct {
	Key   string
	Value string
}

// fieldPayloadSize is the size of the block body (excluding blockHeader):
// two u32-length-prefixed strings plus 64 bytes of padding, matching the
// disk layout's trailing Padding<64> on FieldBlock.
func fieldPayloadSize(f FieldBlock) uint64 {
	return uint64(4+len(f.Key)) + uint64(4+len(f.Value)) + 64
}

// WriteFieldBlock writes f to w at w's current position (the caller tracks
// the running write position; this package never seeks so it composes with
// a buffered writer) and returns the number of bytes written.
func WriteFieldBlock(w io.Writer, f FieldBlock) (n uint64, err error) {
	if len(f.Key) > MaxFieldSize || len(f.Value) > MaxFieldSize {
		return 0, fmt.Errorf("logstore: field exceeds max size %d", MaxFieldSize)
	}
	if err := writeBlockHeader(w, blockHeader{Type: BlockField, Size: fieldPayloadSize(f)}); err != nil {
		return 0, err
	}
	buf := make([]byte, 0, fieldPayloadSize(f))
	buf = appendLPString(buf, f.Key)
	buf = appendLPString(buf, f.Value)
	buf = append(buf, make([]byte, 64)...)
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return blockHeaderSize + fieldPayloadSize(f), nil
}

// ReadFieldBlock reads a FieldBlock (its block header and body) at the
// reader's current position.
func ReadFieldBlock(r io.Reader) (FieldBlock, error) {
	bh, err := readBlockHeader(r)
	if err != nil {
		return FieldBlock{}, err
	}
	if bh.Type != BlockField {
		return FieldBlock{}, fmt.Errorf("logstore: expected field block, got type %d", bh.Type)
	}
	body := make([]byte, bh.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return FieldBlock{}, err
	}
	key, rest, err := readLPString(body)
	if err != nil {
		return FieldBlock{}, err
	}
	value, _, err := readLPString(rest)
	if err != nil {
		return FieldBlock{}, err
	}
	return FieldBlock{Key: key, Value: value}, nil
}

func appendLPString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readLPString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, errors.New("logstore: truncated length-prefixed string")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, errors.New("logstore: truncated length-prefixed string")
	}
	return string(buf[:n]), buf[n:], nil
}

// EntryBlock is one log record: a timestamp plus offsets to its FieldBlocks.
type EntryBlock struct {
	Time                 time.Time
	NextEntryBlockOffset uint64
	FieldOffsets         []uint64
}

func entryPayloadSize(e EntryBlock) uint64 {
	// time:u64 + next_offset:u64 + count:u32 + offsets
	return 8 + 8 + 4 + uint64(len(e.FieldOffsets))*8
}

// WriteEntryBlock writes e to w and returns the number of bytes written.
func WriteEntryBlock(w io.Writer, e EntryBlock) (n uint64, err error) {
	if err := writeBlockHeader(w, blockHeader{Type: BlockEntry, Size: entryPayloadSize(e)}); err != nil {
		return 0, err
	}
	buf := make([]byte, 0, entryPayloadSize(e))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Time.UnixMicro()))
	buf = binary.LittleEndian.AppendUint64(buf, e.NextEntryBlockOffset)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.FieldOffsets)))
	for _, off := range e.FieldOffsets {
		buf = binary.LittleEndian.AppendUint64(buf, off)
	}
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return blockHeaderSize + entryPayloadSize(e), nil
}

// ReadEntryBlock reads an EntryBlock at the reader's current position.
func ReadEntryBlock(r io.Reader) (EntryBlock, error) {
	bh, err := readBlockHeader(r)
	if err != nil {
		return EntryBlock{}, err
	}
	if bh.Type != BlockEntry {
		return EntryBlock{}, fmt.Errorf("logstore: expected entry block, got type %d", bh.Type)
	}
	body := make([]byte, bh.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return EntryBlock{}, err
	}
	if len(body) < 20 {
		return EntryBlock{}, errors.New("logstore: truncated entry block")
	}
	e := EntryBlock{
		Time:                 time.UnixMicro(int64(binary.LittleEndian.Uint64(body[0:8]))).UTC(),
		NextEntryBlockOffset: binary.LittleEndian.Uint64(body[8:16]),
	}
	count := binary.LittleEndian.Uint32(body[16:20])
	rest := body[20:]
	if uint32(len(rest)) < count*8 {
		return EntryBlock{}, errors.New("logstore: truncated entry field offsets")
	}
	e.FieldOffsets = make([]uint64, count)
	for i := range e.FieldOffsets {
		e.FieldOffsets[i] = binary.LittleEndian.Uint64(rest[i*8 : i*8+8])
	}
	return e, nil
}

// CheckpointBlock records a rolling hash over the entries since the
// previous checkpoint.
type CheckpointBlock struct {
	Hash                    uint64
	Time                    time.Time
	NextCheckpointBlockOffset uint64
}

const checkpointPayloadSize = 8 + 8 + 8 + 64

// WriteCheckpointBlock writes c to w and returns the number of bytes
// written.
func WriteCheckpointBlock(w io.Writer, c CheckpointBlock) (n uint64, err error) {
	if err := writeBlockHeader(w, blockHeader{Type: BlockCheckpoint, Size: checkpointPayloadSize}); err != nil {
		return 0, err
	}
	buf := make([]byte, 0, checkpointPayloadSize)
	buf = binary.LittleEndian.AppendUint64(buf, c.Hash)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.Time.UnixMicro()))
	buf = binary.LittleEndian.AppendUint64(buf, c.NextCheckpointBlockOffset)
	buf = append(buf, make([]byte, 64)...)
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return blockHeaderSize + checkpointPayloadSize, nil
}

// ReadCheckpointBlock reads a CheckpointBlock at the reader's current
// position.
func ReadCheckpointBlock(r io.Reader) (CheckpointBlock, error) {
	bh, err := readBlockHeader(r)
	if err != nil {
		return CheckpointBlock{}, err
	}
	if bh.Type != BlockCheckpoint {
		return CheckpointBlock{}, fmt.Errorf("logstore: expected checkpoint block, got type %d", bh.Type)
	}
	body := make([]byte, bh.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return CheckpointBlock{}, err
	}
	if len(body) < 24 {
		return CheckpointBlock{}, errors.New("logstore: truncated checkpoint block")
	}
	return CheckpointBlock{
		Hash:                      binary.LittleEndian.Uint64(body[0:8]),
		Time:                      time.UnixMicro(int64(binary.LittleEndian.Uint64(body[8:16]))).UTC(),
		NextCheckpointBlockOffset: binary.LittleEndian.Uint64(body[16:24]),
	}, nil
}

// PeekBlockType reads the block-type byte of the next block without
// consuming the rest of the block header, letting a scanner decide what to
// do before dispatching to the typed reader.
func PeekBlockType(r io.ByteScanner) (BlockType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if err := r.UnreadByte(); err != nil {
		return 0, err
	}
	return BlockType(b), nil
}
