package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrDelivery marks a notification that could not be delivered.
var ErrDelivery = errors.New("delivery failed")

// Notifier delivers one alert.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
	Name() string
}

// Multi fans an alert out to every notifier. All are attempted; the joined
// failures are returned.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrDelivery, errors.Join(errs...))
}

// Writer prints alerts instead of sending them. Used for dry runs.
type Writer struct {
	W io.Writer
}

func (w Writer) Name() string { return "stdout" }

func (w Writer) Notify(_ context.Context, subject, body string) error {
	_, err := fmt.Fprintf(w.W, "%s\n\n%s\n", subject, body)
	return err
}
