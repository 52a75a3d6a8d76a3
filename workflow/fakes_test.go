package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/teller_backend/models"
)

type stubConfirmer struct {
	decline bool
	calls   int
}

func (c *stubConfirmer) Confirm(ctx context.Context, actor Actor, action ConfirmAction, credential string) error {
	c.calls++
	if c.decline {
		return models.ErrConfirmationDeclined
	}
	return nil
}

type stubLocker struct {
	err error
}

func (l stubLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

type stubSignatures struct {
	removed []string
}

func (s *stubSignatures) Remove(ctx context.Context, url string) error {
	s.removed = append(s.removed, url)
	return nil
}

func (*stubSignatures) Store(ctx context.Context, actor Actor, kind string, encoded string) (string, error) {
	if encoded == "bad" {
		return "", models.NewValidationError("signature", "not an image")
	}
	return fmt.Sprintf("https://storage.test/%d/%s.png", actor.EmployeeId, kind), nil
}
