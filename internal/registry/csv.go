package registry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "npastat/internal/errors"
	"npastat/internal/exporter"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadCSV reads a registry export from disk. A cancelled ctx fails before
// the file is opened.
func LoadCSV(ctx context.Context, path string) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("registry file " + path)
		}
		return nil, apperrors.NewStorageError("open registry file", err)
	}
	defer file.Close()

	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}

// ReadCSV parses a header row followed by data rows. A leading UTF-8 BOM is
// skipped.
func ReadCSV(r io.Reader) (*Frame, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, apperrors.NewParsingError("skip byte order mark", err)
		}
	}

	reader := csv.NewReader(br)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewParsingError("registry table has no header", nil)
		}
		return nil, apperrors.NewParsingError("read registry header", err)
	}

	cells := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("read registry row", err)
		}
		for i, v := range record {
			cells[i] = append(cells[i], v)
		}
	}

	cols := make([]*Column, len(header))
	for i, name := range header {
		text := cells[i]
		if text == nil {
			text = []string{}
		}
		cols[i] = NewTextColumn(name, text)
	}

	f, err := NewFrame(cols...)
	if err != nil {
		return nil, apperrors.NewParsingError("build registry table", err)
	}
	return f, nil
}

// WriteCSV writes the frame with a header row
func (f *Frame) WriteCSV(w io.Writer) error {
	header, records := f.Records()

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

// Save streams the frame to path through w
func (f *Frame) Save(w *exporter.CSVWriter, path string) error {
	s, err := w.CreateStreamWriter(path, f.Names(), false)
	if err != nil {
		return apperrors.NewStorageError("create "+path, err)
	}

	row := make([]string, len(f.cols))
	for r := 0; r < f.rows; r++ {
		for i, c := range f.cols {
			row[i] = c.Cell(r)
		}
		if err := s.WriteRecord(row); err != nil {
			s.Close()
			return apperrors.NewStorageError("write "+path, err)
		}
	}

	if err := s.Close(); err != nil {
		return apperrors.NewStorageError("close "+path, err)
	}

	return nil
}
