package sink

import (
	"bufio"
	"os"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
)

// Binary writes the raw sample bytes verbatim, without framing.
type Binary struct {
	file *os.File
	w    *bufio.Writer
}

func NewBinary(path string) (*Binary, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return nil, errors.New().Wrap(ErrOpen, err)
	}

	return &Binary{file: f, w: bufio.NewWriter(f)}, nil
}

func (*Binary) Begin(*channel.Table) error {
	return nil
}

func (b *Binary) Write(_ int, raw []byte, _ float64) error {
	if _, err := b.w.Write(raw); err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	return nil
}

func (b *Binary) Close() error {
	return closeBuffered(b.w, b.file)
}

func closeBuffered(w *bufio.Writer, f *os.File) error {
	errFactory := errors.New()

	flushErr := w.Flush()
	closeErr := f.Close()
	if flushErr != nil {
		return errFactory.Wrap(ErrWrite, flushErr)
	}
	if closeErr != nil {
		return errFactory.Wrap(ErrClose, closeErr)
	}
	return nil
}
