// Package gmail turns Gmail API messages into activity events.
//
// The actor of a message is the address in its From header, so mail is
// attributed through the email identifier kind shared by every source.
package gmail

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// ActivityMessage is the activity type of sent and received mail.
const ActivityMessage = "message"

// MessagePayload is the stored payload of a message activity.
type MessagePayload struct {
	ThreadID string   `json:"thread_id"`
	Subject  string   `json:"subject,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	To       []string `json:"to,omitempty"`
}

// MessageEvent converts a message fetched with format "metadata", "full" or
// "raw" into an event.
func MessageEvent(msg *gmail.Message) (domain.Event, error) {
	if msg == nil || msg.Id == "" {
		return domain.Event{}, fmt.Errorf("%w: message without ID", domain.ErrInvalidInput)
	}

	header, err := headersOf(msg)
	if err != nil {
		return domain.Event{}, err
	}

	from, err := mail.ParseAddress(header.Get("From"))
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: message %s From header: %v", domain.ErrInvalidInput, msg.Id, err)
	}

	at := occurredAt(msg, header)
	if at.IsZero() {
		return domain.Event{}, fmt.Errorf("%w: message %s has no date", domain.ErrInvalidInput, msg.Id)
	}

	data, err := json.Marshal(MessagePayload{
		ThreadID: msg.ThreadId,
		Subject:  header.Get("Subject"),
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		To:       recipients(header),
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode message payload: %w", err)
	}

	return domain.Event{
		SourceType:   domain.SourceEmail,
		ActivityType: ActivityMessage,
		NativeID:     msg.Id,
		OccurredAt:   at,
		Actor:        domain.EmailActor(from.Address, from.Name),
		Payload:      data,
	}, nil
}

// headersOf reads headers from the parsed payload, or from the RFC 2822
// bytes when the message was fetched with format "raw".
func headersOf(msg *gmail.Message) (mail.Header, error) {
	if msg.Payload != nil && len(msg.Payload.Headers) > 0 {
		h := make(mail.Header, len(msg.Payload.Headers))
		for _, ph := range msg.Payload.Headers {
			key := textproto.CanonicalMIMEHeaderKey(ph.Name)
			h[key] = append(h[key], ph.Value)
		}
		return h, nil
	}

	if msg.Raw == "" {
		return nil, fmt.Errorf("%w: message %s has neither headers nor raw content", domain.ErrInvalidInput, msg.Id)
	}
	raw, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		// Gmail sometimes omits padding.
		raw, err = base64.RawURLEncoding.DecodeString(msg.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: message %s raw content: %v", domain.ErrInvalidInput, msg.Id, err)
		}
	}
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: message %s: %v", domain.ErrInvalidInput, msg.Id, err)
	}
	return m.Header, nil
}

// occurredAt prefers Gmail's internal date, which is when the message was
// received, over the sender-controlled Date header.
func occurredAt(msg *gmail.Message, header mail.Header) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC()
	}
	if t, err := header.Date(); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func recipients(header mail.Header) []string {
	list, err := header.AddressList("To")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}
