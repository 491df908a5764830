package publishers

import "context"

// Publisher hands a rendered report to a downstream sink (mail, bucket, queue, etc).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, d Delivery) error
}
