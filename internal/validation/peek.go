package validation

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/arkilian/sortcheck/internal/reader"
)

// Peekable wraps a batch stream with a one-batch lookahead and drops empty
// batches, so neighbours are always the nearest non-empty batches.
type Peekable struct {
	stream reader.BatchStream
	peeked arrow.Record
	err    error
}

// NewPeekable wraps stream. The stream itself is still closed by the caller.
func NewPeekable(stream reader.BatchStream) *Peekable {
	return &Peekable{stream: stream}
}

// Next returns the next non-empty batch, or io.EOF. The caller owns the record.
func (p *Peekable) Next(ctx context.Context) (arrow.Record, error) {
	if p.peeked != nil {
		rec := p.peeked
		p.peeked = nil
		return rec, nil
	}
	return p.pull(ctx)
}

// Peek returns the next non-empty batch without consuming it, or io.EOF.
// The record stays owned by the Peekable until it is returned by Next.
func (p *Peekable) Peek(ctx context.Context) (arrow.Record, error) {
	if p.peeked == nil {
		rec, err := p.pull(ctx)
		if err != nil {
			return nil, err
		}
		p.peeked = rec
	}
	return p.peeked, nil
}

// Release drops a batch that was peeked but never consumed.
func (p *Peekable) Release() {
	if p.peeked != nil {
		p.peeked.Release()
		p.peeked = nil
	}
}

func (p *Peekable) pull(ctx context.Context) (arrow.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	for {
		rec, err := p.stream.Next(ctx)
		if err != nil {
			// Errors are sticky, io.EOF included.
			p.err = err
			return nil, err
		}
		if rec.NumRows() == 0 {
			rec.Release()
			continue
		}
		return rec, nil
	}
}
