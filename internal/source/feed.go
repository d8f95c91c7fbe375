package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"jobfeed/internal/models"
)

// Feed streams candidate records captured by the browser extractor. It reads
// either one JSON array of objects or newline-delimited JSON objects.
type Feed struct {
	br      *bufio.Reader
	dec     *json.Decoder
	closer  io.Closer
	sniffed bool
	array   bool
	started bool
	done    bool
	// set when a read was left blocked by cancellation; the reader goroutine
	// may still own dec, so nothing touches it afterwards
	abandoned bool
}

type decoded struct {
	rec models.Record
	err error
}

// OpenFeed opens path, or standard input when path is "-".
func OpenFeed(path string) (*Feed, error) {
	if path == "-" {
		return NewFeed(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	feed := NewFeed(f)
	feed.closer = f
	return feed, nil
}

func NewFeed(r io.Reader) *Feed {
	br := bufio.NewReader(r)
	return &Feed{br: br, dec: json.NewDecoder(br)}
}

// Next returns the next candidate, io.EOF at the end of the feed, an error
// wrapping ErrExtraction for an element that is not a usable object, or any
// other error when the feed itself is unreadable. A read blocked on a slow
// input (a pipe on stdin) is given up as soon as ctx is cancelled.
func (f *Feed) Next(ctx context.Context) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	if f.abandoned {
		return models.Record{}, io.EOF
	}

	ch := make(chan decoded, 1)
	go func() {
		rec, err := f.decodeNext()
		ch <- decoded{rec: rec, err: err}
	}()

	select {
	case d := <-ch:
		return d.rec, d.err
	case <-ctx.Done():
		f.abandoned = true
		return models.Record{}, ctx.Err()
	}
}

func (f *Feed) decodeNext() (models.Record, error) {
	if f.done {
		return models.Record{}, io.EOF
	}
	if !f.sniffed {
		// peeking blocks on an idle pipe, so it happens here rather than in NewFeed
		f.array = firstByte(f.br) == '['
		f.sniffed = true
	}
	if f.array && !f.started {
		if _, err := f.dec.Token(); err != nil {
			return models.Record{}, f.fail(err)
		}
		f.started = true
	}
	if !f.dec.More() {
		f.done = true
		return models.Record{}, io.EOF
	}

	var rec models.Record
	if err := f.dec.Decode(&rec); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return models.Record{}, f.fail(err)
		}
		// the decoder already consumed the bad element
		return models.Record{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return rec, nil
}

func (f *Feed) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func (f *Feed) fail(err error) error {
	f.done = true
	return fmt.Errorf("read feed: %w", err)
}

// firstByte peeks past leading whitespace without consuming anything else.
func firstByte(br *bufio.Reader) byte {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		br.UnreadByte()
		return b
	}
}

// Passthrough is the detail fetcher for feeds whose candidates already carry
// their detail fields.
type Passthrough struct{}

func (Passthrough) Fetch(ctx context.Context, identity models.Record) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	return identity.Clone(), nil
}
