package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"apibaraDeserializer/internal/model"
)

// JsonlStorage appends raw events to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutEvents appends a page of raw events as JSON lines.
func (s *JsonlStorage) PutEvents(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// Offset returns the size of the output file.
func (s *JsonlStorage) Offset() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat output file: %w", err)
	}
	return info.Size(), nil
}

// Rewind drops every line written after offset.
func (s *JsonlStorage) Rewind(offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Truncate(s.path, offset)
	if errors.Is(err, os.ErrNotExist) && offset == 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rewind output file: %w", err)
	}
	return nil
}

// ScanEvents reads raw events from JSON lines, accepting both the form
// written by PutEvents and the Apibara stream form. fn receives every
// non-empty line with its event or parse error; returning an error from fn
// stops the scan.
func ScanEvents(r io.Reader, fn func(line []byte, ev *model.Event, err error) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := parseEventLine(line)
		if err := fn(line, ev, err); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}

func parseEventLine(line []byte) (*model.Event, error) {
	if bytes.Contains(line, []byte(`"fromAddress"`)) {
		return model.ParseApibaraEvent(line)
	}
	var ev model.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	if ev.FromAddress == nil {
		return nil, fmt.Errorf("event has no from_address")
	}
	return &ev, nil
}
