package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fanout delivers a report to all configured publishers.
type Fanout struct {
	publishers []Publisher
}

// NewFanout builds a dispatcher that fans out deliveries across publishers.
func NewFanout(pubs []Publisher) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p == nil {
			continue
		}
		cp = append(cp, p)
	}
	return &Fanout{publishers: cp}
}

// Publish forwards the delivery to every registered publisher in order. A
// failing sink does not stop the others. It returns the ids of the publishers
// that handled the delivery.
func (f *Fanout) Publish(ctx context.Context, d Delivery) ([]string, error) {
	if f == nil || len(f.publishers) == 0 {
		return nil, nil
	}

	var errs []error
	delivered := make([]string, 0, len(f.publishers))
	for _, p := range f.publishers {
		if err := p.Publish(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
			continue
		}
		delivered = append(delivered, p.ID())
	}
	return delivered, errors.Join(errs...)
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close releases publishers that hold client connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", p.Type(), p.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
