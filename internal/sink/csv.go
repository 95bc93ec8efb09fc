package sink

import (
	"bufio"
	"os"
	"strconv"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
)

// CSV writes one header row of "<label> <unit>" cells, then one row of
// decoded values per sample set. Cells are separated by ", ".
type CSV struct {
	file    *os.File
	w       *bufio.Writer
	last    int
	scratch []byte
	begun   bool
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return nil, errors.New().Wrap(ErrOpen, err)
	}

	return &CSV{
		file:    f,
		w:       bufio.NewWriter(f),
		scratch: make([]byte, 0, 32),
	}, nil
}

func (c *CSV) Begin(table *channel.Table) error {
	errFactory := errors.New()

	if c.begun {
		return errFactory.WithMessage(errors.ErrInvalidOperation, "CSV header already written")
	}
	c.begun = true
	c.last = table.Len() - 1

	for i := range table.Channels {
		ch := table.At(i)
		c.w.WriteByte('"')
		c.w.WriteString(ch.Label)
		c.w.WriteByte(' ')
		c.w.WriteString(ch.Unit)
		c.w.WriteByte('"')
		if err := c.separator(i); err != nil {
			return errFactory.Wrap(ErrWrite, err)
		}
	}

	return nil
}

func (c *CSV) Write(idx int, _ []byte, decoded float64) error {
	c.scratch = strconv.AppendFloat(c.scratch[:0], decoded, 'f', 1, 64)
	c.w.Write(c.scratch)

	if err := c.separator(idx); err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	return nil
}

// separator ends a cell: newline after the last channel, ", " otherwise.
// bufio.Writer keeps the first write error, so checking here is enough.
func (c *CSV) separator(idx int) error {
	if idx == c.last {
		return c.w.WriteByte('\n')
	}
	_, err := c.w.WriteString(", ")
	return err
}

func (c *CSV) Close() error {
	return closeBuffered(c.w, c.file)
}
