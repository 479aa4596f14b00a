package mail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// ReplyEntry records that a lead replied at a given time.
type ReplyEntry struct {
	Email     string    `yaml:"email"`
	RepliedAt time.Time `yaml:"replied_at"`
}

// ReplyFile is a reply signal backed by a YAML list of ReplyEntry. The file
// is read on every call; a missing file means no replies.
type ReplyFile struct {
	path string
}

// NewReplyFile creates a reply signal for the given path.
func NewReplyFile(path string) *ReplyFile {
	return &ReplyFile{path: path}
}

// HasRepliedSince implements engine.ReplyChecker.
func (r *ReplyFile) HasRepliedSince(ctx context.Context, lead engine.Lead, since time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entries, err := r.load()
	if err != nil {
		return false, err
	}

	email := lead.Identity()
	for _, e := range entries {
		if engine.NormalizeEmail(e.Email) == email && e.RepliedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ReplyFile) load() ([]ReplyEntry, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewTransientError("failed to read reply file", err).
			WithOperation(engine.PortReplies)
	}

	var entries []ReplyEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		// Leads wait until the file is fixed.
		return nil, engine.NewTransientError(fmt.Sprintf("failed to parse reply file %s", r.path), err).
			WithOperation(engine.PortReplies)
	}
	return entries, nil
}
