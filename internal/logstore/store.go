package logstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joeycumines/qsys/internal/batch"
	"github.com/joeycumines/qsys/internal/logging"
)

// checkpointEntries is the default entry count between checkpoint blocks.
const checkpointEntries = 1000

// checkpointInterval is the default time between checkpoint blocks.
const checkpointInterval = 5 * time.Second

// Message is one record appended to the store: a set of tag fields plus a
// free-form message body, timestamped when the engine receives it.
type Message struct {
	Time    time.Time
	Fields  []KV
	Message string

	err error
}

// KV is a single tag field attached to a Message.
type KV struct{ Key, Value string }

// Store owns a single active log file in dir and appends messages to it via
// a batch.Batcher that hands a single writer batches of up to
// checkpointEntries messages. There is no fixed-capacity queue in front of
// the writer: Append blocks until its batch is written. Every checkpointEntries
// messages, or every checkpointInterval (whichever comes first), it emits a
// checkpoint block hashing the intervening entries.
type Store struct {
	dir string
	log *logging.Logger

	mu           sync.Mutex
	f            *os.File
	offset       uint64
	lastEntryOff uint64 // 0 if none written yet this file
	lastCheckOff uint64 // 0 if none written yet this file
	timeMin      time.Time

	batcher *batch.Batcher[*Message]
}

// Open creates (or rolls over into) a new log file in dir and returns a
// Store ready to accept messages.
func Open(dir string, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir, log: log}
	if err := s.rollover(); err != nil {
		return nil, err
	}
	s.batcher = batch.NewBatcher(&batch.BatcherConfig{
		MaxSize:       checkpointEntries,
		FlushInterval: checkpointInterval,
	}, s.writeBatch)
	return s, nil
}

// Append enqueues msg for writing and blocks until its batch has been
// flushed to disk (or the checkpointInterval / checkpointEntries boundary
// is reached).
func (s *Store) Append(ctx context.Context, msg *Message) error {
	res, err := s.batcher.Submit(ctx, msg)
	if err != nil {
		return err
	}
	if err := res.Wait(ctx); err != nil {
		return err
	}
	return msg.err
}

func randomSuffix() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (s *Store) rollover() error {
	name := filepath.Join(s.dir, fmt.Sprintf("log-%s.log", randomSuffix()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	h := HeaderBlock{
		Version:     Version,
		Compression: 0,
		TimeMin:     now,
		TimeMax:     now,
	}
	if err := WriteHeaderBlock(f, h); err != nil {
		f.Close()
		return err
	}
	s.f = f
	s.offset = HeaderSize
	s.lastEntryOff = 0
	s.lastCheckOff = 0
	s.timeMin = now
	return nil
}

// writeBatch is the batch.BatchProcessor backing the Store's batcher: it
// writes every message's field and entry blocks, then emits one checkpoint
// block summarizing the batch.
func (s *Store) writeBatch(_ context.Context, msgs []*Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasher := sha256.New()
	var maxTime time.Time
	for _, msg := range msgs {
		if err := s.writeEntry(msg, hasher); err != nil {
			msg.err = fmt.Errorf("logstore: write entry: %w", err)
			if rerr := s.rollover(); rerr != nil {
				s.log.Error().Err(rerr).Msg("logstore: rollover after write error failed")
			}
			continue
		}
		if msg.Time.After(maxTime) {
			maxTime = msg.Time
		}
	}

	sum := hasher.Sum(nil)
	hash := binary.LittleEndian.Uint64(sum[:8])
	if err := s.writeCheckpoint(hash, maxTime); err != nil {
		s.log.Error().Err(err).Msg("logstore: failed to write checkpoint block")
	}
	if !maxTime.IsZero() {
		if err := s.patchTimeMax(maxTime); err != nil {
			s.log.Warn().Err(err).Msg("logstore: failed to update header time_max")
		}
	}
	return nil
}

func (s *Store) writeEntry(msg *Message, hasher io.Writer) error {
	var fieldOffsets []uint64
	for _, kv := range msg.Fields {
		n, err := WriteFieldBlock(s.f, FieldBlock{Key: kv.Key, Value: kv.Value})
		if err != nil {
			return err
		}
		fieldOffsets = append(fieldOffsets, s.offset)
		s.offset += n
	}
	msgFieldOffset := s.offset
	msgFieldN, err := WriteFieldBlock(s.f, FieldBlock{Key: "__msg", Value: msg.Message})
	if err != nil {
		return err
	}
	fieldOffsets = append(fieldOffsets, msgFieldOffset)
	s.offset += msgFieldN

	entryOffset := s.offset
	entry := EntryBlock{Time: msg.Time, FieldOffsets: fieldOffsets}
	n, err := WriteEntryBlock(s.f, entry)
	if err != nil {
		return err
	}

	if s.lastEntryOff == 0 {
		if err := s.patchHeaderField(firstEntryBlockOffsetField, entryOffset); err != nil {
			return err
		}
	} else if err := s.patchNextEntryOffset(s.lastEntryOff, entryOffset); err != nil {
		return err
	}
	s.lastEntryOff = entryOffset
	s.offset += n

	fmt.Fprintf(hasher, "%d:%s\n", msg.Time.UnixMicro(), msg.Message)
	return nil
}

func (s *Store) writeCheckpoint(hash uint64, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	checkOffset := s.offset
	n, err := WriteCheckpointBlock(s.f, CheckpointBlock{Hash: hash, Time: t})
	if err != nil {
		return err
	}
	if s.lastCheckOff != 0 {
		if err := s.patchNextCheckpointOffset(s.lastCheckOff, checkOffset); err != nil {
			return err
		}
	} else {
		if err := s.patchHeaderField(firstCheckpointBlockOffsetField, checkOffset); err != nil {
			return err
		}
	}
	s.lastCheckOff = checkOffset
	s.offset += n
	return nil
}

// field byte offsets within HeaderBlock, used for in-place patches.
const (
	timeMaxField                   = 24
	firstEntryBlockOffsetField     = 40
	firstCheckpointBlockOffsetField = 48
)

func (s *Store) patchHeaderField(byteOffset int, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	_, err := s.f.WriteAt(buf[:], int64(byteOffset))
	return err
}

func (s *Store) patchTimeMax(t time.Time) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.UnixMicro()))
	_, err := s.f.WriteAt(buf[:], timeMaxField)
	return err
}

// patchNextEntryOffset overwrites the next_entry_block_offset field of the
// entry block at entryBlockOffset to point at nextOffset. The field sits
// blockHeaderSize (type+size) + 8 (time) bytes into the entry block.
func (s *Store) patchNextEntryOffset(entryBlockOffset, nextOffset uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nextOffset)
	_, err := s.f.WriteAt(buf[:], int64(entryBlockOffset+blockHeaderSize+8))
	return err
}

// patchNextCheckpointOffset overwrites the next_checkpoint_block_offset
// field of the checkpoint block at checkpointBlockOffset. The field sits
// blockHeaderSize + 8 (hash) + 8 (time) bytes into the checkpoint block.
func (s *Store) patchNextCheckpointOffset(checkpointBlockOffset, nextOffset uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nextOffset)
	_, err := s.f.WriteAt(buf[:], int64(checkpointBlockOffset+blockHeaderSize+8+8))
	return err
}

// Close flushes and closes the active file. The Store is unusable
// afterward.
func (s *Store) Close() error {
	_ = s.batcher.Shutdown(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
