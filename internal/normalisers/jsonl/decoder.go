// Package jsonl decodes newline-delimited JSON event files, the wire format
// collectors write to the spool directory and POST to the HTTP API.
//
// Every line is validated against an embedded JSON schema before it is
// turned into a domain.Event. A line that fails is reported as a
// *domain.MalformedEventError carrying the raw line, so a run can count and
// skip it without stopping.
package jsonl

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

const schemaURL = "https://schemas.custodia-labs.dev/pulse/event.schema.json"

// maxLineBytes bounds a single event line.
const maxLineBytes = 4 << 20

//go:embed event.schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse event schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add event schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return sch, nil
})

// WireEvent is the JSON shape of one event line.
type WireEvent struct {
	SourceType   string          `json:"source_type"`
	ActivityType string          `json:"activity_type"`
	NativeID     string          `json:"native_id"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Actor        WireActor       `json:"actor"`
	Payload      json.RawMessage `json:"payload"`
}

// WireActor is either a source identity or a bare email address.
type WireActor struct {
	SourceType  string `json:"source_type,omitempty"`
	SourceKey   string `json:"source_key,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// DomainActor converts the wire actor into its domain form.
func (a WireActor) DomainActor() domain.Actor {
	if a.Email != "" {
		return domain.EmailActor(a.Email, a.DisplayName)
	}
	return domain.Actor{
		SourceType:  domain.SourceType(strings.ToLower(a.SourceType)),
		SourceKey:   a.SourceKey,
		DisplayName: a.DisplayName,
	}
}

// Decoder reads events line by line.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{sc: sc}
}

// Line returns the number of the line last read, starting at 1.
func (d *Decoder) Line() int {
	return d.line
}

// Next returns the next event. Blank lines are skipped. It returns io.EOF
// after the last line, a *domain.MalformedEventError for an invalid line,
// and any other error when the reader itself fails.
func (d *Decoder) Next() (domain.Event, error) {
	for d.sc.Scan() {
		d.line++
		line := bytes.TrimSpace(d.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return Decode(line)
	}
	if err := d.sc.Err(); err != nil {
		return domain.Event{}, fmt.Errorf("read line %d: %w", d.line+1, err)
	}
	return domain.Event{}, io.EOF
}

// LineError ties a malformed event to its line number.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ReadAll decodes every line of r. Malformed lines are returned as
// *LineError values alongside the valid events; the final error is set
// only when r cannot be read.
func ReadAll(r io.Reader) ([]domain.Event, []error, error) {
	d := NewDecoder(r)
	var (
		events []domain.Event
		bad    []error
	)
	for {
		e, err := d.Next()
		switch {
		case err == nil:
			events = append(events, e)
		case errors.Is(err, io.EOF):
			return events, bad, nil
		case errors.Is(err, domain.ErrMalformedEvent):
			bad = append(bad, &LineError{Line: d.Line(), Err: err})
		default:
			return events, bad, err
		}
	}
}

// Decode validates a single JSON document and converts it into an event.
func Decode(data []byte) (domain.Event, error) {
	raw := append([]byte(nil), data...)

	sch, err := compiledSchema()
	if err != nil {
		return domain.Event{}, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return domain.Event{}, malformed(raw, sourceHint(raw), "event", "is not valid JSON")
	}
	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			field, reason := describe(ve)
			return domain.Event{}, malformed(raw, sourceHint(raw), field, reason)
		}
		return domain.Event{}, malformed(raw, sourceHint(raw), "event", err.Error())
	}

	var w WireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Event{}, malformed(raw, sourceHint(raw), "event", err.Error())
	}

	return domain.Event{
		SourceType:   domain.SourceType(w.SourceType),
		ActivityType: w.ActivityType,
		NativeID:     w.NativeID,
		OccurredAt:   w.OccurredAt.UTC(),
		Actor:        w.Actor.DomainActor(),
		Payload:      w.Payload,
	}, nil
}

// Encode writes e as one line of the wire format.
func Encode(w io.Writer, e domain.Event) error {
	actor := WireActor{
		SourceType:  string(e.Actor.SourceType),
		SourceKey:   e.Actor.SourceKey,
		DisplayName: e.Actor.DisplayName,
	}
	data, err := json.Marshal(WireEvent{
		SourceType:   string(e.SourceType),
		ActivityType: e.ActivityType,
		NativeID:     e.NativeID,
		OccurredAt:   e.OccurredAt.UTC(),
		Actor:        actor,
		Payload:      e.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Key(), err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// describe picks the deepest failing location of a validation error.
func describe(ve *jsonschema.ValidationError) (field, reason string) {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field = strings.Join(leaf.InstanceLocation, ".")
	if field == "" {
		field = "event"
	}
	reason = strings.TrimSpace(leaf.Error())
	if i := strings.LastIndex(reason, "\n"); i >= 0 {
		reason = strings.TrimSpace(reason[i+1:])
	}
	return field, reason
}

// sourceHint extracts source_type for error context, even from lines that
// fail validation.
func sourceHint(raw []byte) string {
	var probe struct {
		SourceType string `json:"source_type"`
	}
	if json.Unmarshal(raw, &probe) != nil || probe.SourceType == "" {
		return "unknown"
	}
	return probe.SourceType
}

func malformed(raw []byte, source, field, reason string) error {
	return &domain.MalformedEventError{
		SourceType: source,
		Field:      field,
		Reason:     reason,
		Raw:        raw,
	}
}
