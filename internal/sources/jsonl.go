package sources

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

const maxLineSize = 1 << 20

// JSONLSource replays recorded messages from a file with one JSON
// encoded RawMessage per line.
type JSONLSource struct {
	path string
	now  func() time.Time
}

func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{path: path, now: time.Now}
}

func (s *JSONLSource) GetName() string { return "jsonl:" + s.path }

func (s *JSONLSource) Messages(ctx context.Context) (<-chan models.RawMessage, error) {
	msgs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan models.RawMessage)
	go func() {
		defer close(out)
		for _, msg := range msgs {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *JSONLSource) FetchRecent(ctx context.Context, since time.Time) ([]models.RawMessage, error) {
	msgs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.RawMessage
	for _, msg := range msgs {
		if !msg.ReceivedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *JSONLSource) readAll(ctx context.Context) ([]models.RawMessage, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open replay file", goerr.V("path", s.path))
	}
	defer f.Close()

	msgs, err := decode(ctx, f, s.now)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read replay file", goerr.V("path", s.path))
	}
	return msgs, nil
}

// decode skips blank and malformed lines. Missing message IDs default to
// the line number and missing timestamps to now.
func decode(ctx context.Context, r io.Reader, now func() time.Time) ([]models.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []models.RawMessage
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var msg models.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.From(ctx).Warn("skipping malformed replay line", "line", line, logging.ErrAttr(err))
			continue
		}
		msg.SourceID = models.NormalizeSourceID(msg.SourceID)
		if msg.MessageID == "" {
			msg.MessageID = strconv.Itoa(line)
		}
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = now()
		}
		out = append(out, msg)
	}
	if err := scanner.Err(); err != nil {
		return out, goerr.Wrap(err, "scan failed", goerr.V("line", line))
	}
	return out, nil
}
