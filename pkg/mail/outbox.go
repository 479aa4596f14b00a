package mail

import (
	"context"
	"fmt"
	netmail "net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Outbox delivers messages by writing them as .eml files into a directory.
type Outbox struct {
	dir    string
	from   netmail.Address
	now    func() time.Time
	logger zerolog.Logger
}

// NewOutbox creates the directory if needed.
func NewOutbox(dir string, from netmail.Address, logger zerolog.Logger) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory: %w", err)
	}
	return &Outbox{
		dir:    dir,
		from:   from,
		now:    time.Now,
		logger: logger.With().Str("component", "outbox").Str("dir", dir).Logger(),
	}, nil
}

// Send implements engine.Deliverer.
func (o *Outbox) Send(ctx context.Context, lead engine.Lead, content engine.Content) (*engine.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sentAt := o.now().UTC()
	msg, err := NewMessage(o.from, lead, content, sentAt)
	if err != nil {
		return nil, err
	}
	msg.MessageID = uuid.NewString() + "@leadflow"

	raw, err := msg.Bytes()
	if err != nil {
		return nil, engine.NewPermanentError("failed to render message", err).
			WithLead(lead.Identity()).
			WithOperation(engine.PortDelivery).
			WithCode(engine.ErrCodeContentInvalid)
	}

	id := strings.TrimSuffix(msg.MessageID, "@leadflow")
	name := fmt.Sprintf("%s-%s.eml", sentAt.Format("20060102T150405Z"), id)
	if err := writeFileAtomic(filepath.Join(o.dir, name), raw, 0o644); err != nil {
		return nil, engine.NewTransientError("failed to write outbox message", err).
			WithLead(lead.Identity()).
			WithOperation(engine.PortDelivery)
	}

	o.logger.Debug().Str("email", lead.Identity()).Str("file", name).Msg("Message written")
	return &engine.Receipt{MessageID: msg.MessageID, SentAt: sentAt}, nil
}

// writeFileAtomic writes data to a temp file, syncs it and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	// The message must be on disk before the send is recorded as done.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
