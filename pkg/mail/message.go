package mail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/openfroyo/leadflow/pkg/engine"
)

// Message is a plain-text email ready to be serialized.
type Message struct {
	From      netmail.Address
	To        netmail.Address
	Subject   string
	Body      string
	Date      time.Time
	MessageID string
}

// NewMessage builds the message for a lead. The recipient address must parse.
func NewMessage(from netmail.Address, lead engine.Lead, content engine.Content, now time.Time) (*Message, error) {
	to, err := netmail.ParseAddress(strings.TrimSpace(lead.Email))
	if err != nil {
		return nil, engine.NewPermanentError("invalid recipient address", err).
			WithLead(lead.Identity()).
			WithOperation(engine.PortDelivery).
			WithCode(engine.ErrCodeRecipient)
	}
	to.Name = lead.Attributes.FullName()

	return &Message{
		From:    from,
		To:      *to,
		Subject: content.Subject,
		Body:    content.Body,
		Date:    now,
	}, nil
}

// Bytes renders the message in RFC 5322 form with CRLF line endings and a
// quoted-printable UTF-8 body.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer

	header := func(name, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}

	header("From", m.From.String())
	header("To", m.To.String())
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", m.Date.Format(time.RFC1123Z))
	if m.MessageID != "" {
		header("Message-ID", "<"+m.MessageID+">")
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(m.Body)); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	buf.WriteString("\r\n")

	return buf.Bytes(), nil
}
