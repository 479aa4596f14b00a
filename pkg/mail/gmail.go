package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	netmail "net/mail"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/openfroyo/leadflow/pkg/engine"
	"github.com/openfroyo/leadflow/pkg/gapi"
)

// GmailScopes are the OAuth scopes needed for sending and reply search.
var GmailScopes = []string{gmail.GmailSendScope, gmail.GmailReadonlyScope}

// Gmail sends mail and detects replies through the Gmail API of one mailbox.
type Gmail struct {
	service *gmail.Service
	user    string
	from    netmail.Address
	now     func() time.Time
	logger  zerolog.Logger
}

// NewGmail creates a Gmail client acting as the authenticated user.
func NewGmail(ctx context.Context, from netmail.Address, logger zerolog.Logger, opts ...option.ClientOption) (*Gmail, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}

	return &Gmail{
		service: service,
		user:    "me",
		from:    from,
		now:     time.Now,
		logger:  logger.With().Str("component", "gmail").Logger(),
	}, nil
}

// Send implements engine.Deliverer.
func (g *Gmail) Send(ctx context.Context, lead engine.Lead, content engine.Content) (*engine.Receipt, error) {
	sentAt := g.now().UTC()

	msg, err := NewMessage(g.from, lead, content, sentAt)
	if err != nil {
		return nil, err
	}
	raw, err := msg.Bytes()
	if err != nil {
		return nil, engine.NewPermanentError("failed to render message", err).
			WithLead(lead.Identity()).
			WithOperation(engine.PortDelivery).
			WithCode(engine.ErrCodeContentInvalid)
	}

	sent, err := g.service.Users.Messages.Send(g.user, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		if gapi.IsInvalidRecipient(err) {
			return nil, engine.NewPermanentError("recipient rejected", err).
				WithLead(lead.Identity()).
				WithOperation(engine.PortDelivery).
				WithCode(engine.ErrCodeRecipient)
		}
		return nil, gapi.Classify(err, engine.PortDelivery, "gmail send failed")
	}

	g.logger.Debug().
		Str("email", lead.Identity()).
		Str("message_id", sent.Id).
		Msg("Message sent")

	return &engine.Receipt{MessageID: sent.Id, SentAt: sentAt}, nil
}

// HasRepliedSince implements engine.ReplyChecker. Any message from the lead
// after since counts as a reply. Gmail search has one-second granularity.
func (g *Gmail) HasRepliedSince(ctx context.Context, lead engine.Lead, since time.Time) (bool, error) {
	query := ReplyQuery(lead.Identity(), since)

	resp, err := g.service.Users.Messages.List(g.user).
		Q(query).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return false, gapi.Classify(err, engine.PortReplies, "gmail reply search failed")
	}

	replied := len(resp.Messages) > 0
	g.logger.Debug().
		Str("email", lead.Identity()).
		Str("query", query).
		Bool("replied", replied).
		Msg("Reply check")
	return replied, nil
}

// ReplyQuery returns the Gmail search for messages from email after since.
func ReplyQuery(email string, since time.Time) string {
	return fmt.Sprintf("from:%s after:%d", email, since.Unix())
}
