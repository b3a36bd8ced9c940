package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
)

// JournalEntry is one line of the journal.
type JournalEntry struct {
	Time    time.Time       `json:"time"`
	Session string          `json:"session"`
	Kind    string          `json:"kind"` // report, market
	Month   int             `json:"month"`
	Data    json.RawMessage `json:"data"`
}

// Journal appends monthly reports and market results as zstd-compressed
// JSONL, one file per UTC hour.
type Journal struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJournal creates a journal writing under dir.
func NewJournal(dir string) *Journal {
	return &Journal{
		baseDir: dir,
		prefix:  "farm",
		now:     time.Now,
	}
}

// WriteReport journals a monthly report.
func (j *Journal) WriteReport(session string, r *engine.TickReport) error {
	return j.write(session, "report", r.Month, r)
}

// WriteMarket journals a closed market day.
func (j *Journal) WriteMarket(session string, s economy.Summary) error {
	return j.write(session, "market", s.Month, s)
}

func (j *Journal) write(session, kind string, month int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err := json.Marshal(JournalEntry{
		Time:    j.now().UTC(),
		Session: session,
		Kind:    kind,
		Month:   month,
		Data:    data,
	})
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	// Push the block to the file so a crash loses at most the open frame trailer.
	return j.enc.Flush()
}

// Close flushes and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Path returns the file currently being written, if any.
func (j *Journal) Path() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.curHour == "" {
		return ""
	}
	return j.pathForHour(j.curHour)
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// ReadJournal decodes every entry of a journal file. A file whose writer is
// still open, or died, yields the flushed entries along with a tail error.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []JournalEntry
	jd := json.NewDecoder(dec)
	for {
		var e JournalEntry
		if err := jd.Decode(&e); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, e)
	}
}
