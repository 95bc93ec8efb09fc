package sink

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultBatchSize    = 1024
	DefaultBatchTimeout = 5
)

type sampleRow struct {
	seq   int64
	idx   int
	value float64
}

// SQLite stores decoded readings as rows keyed by run id, sample set
// sequence number and channel index. Rows are buffered and written in
// batches, either when the buffer is full or on a timer.
type SQLite struct {
	db     *sql.DB
	log    logger.Logger
	path   string
	runID  string
	batch  int
	last   int
	seq    int64
	begun  bool
	closed bool

	mu            sync.Mutex
	buffer        []sampleRow
	flushErr      error
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewSQLite(opts Options) (*SQLite, error) {
	errFactory := errors.New()
	log := logger.Component("sink")

	if opts.RunID == "" {
		return nil, errFactory.WithMessage(ErrOpen, "SQLite output requires a run id")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrOpen, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  opts.Path,
			Error: err.Error(),
		})
	}

	dsn := opts.Path + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrOpen, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, opts.Path, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrOpen, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	timeout := opts.BatchTimeout
	if timeout == 0 {
		timeout = DefaultBatchTimeout
	}

	s := &SQLite{
		db:            db,
		log:           log,
		path:          opts.Path,
		runID:         opts.RunID,
		batch:         batch,
		buffer:        make([]sampleRow, 0, batch),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if timeout > 0 {
		s.flushTicker = time.NewTicker(time.Duration(timeout) * time.Second)
		go s.flusher()
	} else {
		close(s.flushDoneChan)
	}

	log.Info().
		Str("path", opts.Path).
		Str("run_id", opts.RunID).
		Int("schema_version", SchemaVersion).
		Int("batch_size", batch).
		Int("batch_timeout", timeout).
		Msg("SQLite output initialized")

	return s, nil
}

// Begin records the run and its channel table.
func (s *SQLite) Begin(table *channel.Table) error {
	errFactory := errors.New()

	if s.begun {
		return errFactory.WithMessage(errors.ErrInvalidOperation, "run already recorded")
	}
	s.begun = true
	s.last = table.Len() - 1

	tx, err := s.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if _, err := tx.Exec(insertRunSQL, s.runID, time.Now().UTC().Format(time.RFC3339Nano), table.Len()); err != nil {
		tx.Rollback()
		return errFactory.Wrap(ErrWrite, err)
	}

	for i := range table.Channels {
		ch := table.At(i)
		if _, err := tx.Exec(insertChannelSQL, s.runID, i, ch.ID, ch.Label, ch.Unit, ch.Scale); err != nil {
			tx.Rollback()
			return errFactory.WithData(ErrWrite, struct {
				Phase   string
				Channel string
				Error   string
			}{
				Phase:   "insert_channel",
				Channel: ch.ID,
				Error:   err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	return nil
}

// Write buffers one reading. A failed background flush is reported by the
// next Write.
func (s *SQLite) Write(idx int, _ []byte, decoded float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushErr != nil {
		err := s.flushErr
		s.flushErr = nil
		return err
	}

	s.buffer = append(s.buffer, sampleRow{seq: s.seq, idx: idx, value: decoded})
	if idx == s.last {
		s.seq++
	}

	if len(s.buffer) >= s.batch {
		return s.flush()
	}

	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.flushTicker != nil {
		close(s.shutdownChan)
		s.flushTicker.Stop()
	}
	<-s.flushDoneChan

	s.mu.Lock()
	flushErr := s.flush()
	s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Debug().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errors.New().WithData(ErrClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	if flushErr != nil {
		return flushErr
	}

	s.log.Debug().
		Str("run_id", s.runID).
		Int64("sample_sets", s.seq).
		Msg("SQLite output closed")

	return nil
}

func (s *SQLite) flusher() {
	defer close(s.flushDoneChan)

	for {
		select {
		case <-s.flushTicker.C:
			s.mu.Lock()
			if err := s.flush(); err != nil && s.flushErr == nil {
				s.flushErr = err
			}
			s.mu.Unlock()
		case <-s.shutdownChan:
			return
		}
	}
}

// flush writes the buffered rows in one transaction. Callers hold s.mu.
func (s *SQLite) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := s.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			s.log.Debug().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, row := range s.buffer {
		if _, err := stmt.Exec(s.runID, row.seq, row.idx, row.value); err != nil {
			if err := tx.Rollback(); err != nil {
				s.log.Debug().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	s.log.Debug().Int("rows", len(s.buffer)).Msg("Flushed samples to database")
	s.buffer = s.buffer[:0]

	return nil
}
