// Package ingest turns raw device interaction events into action inputs.
package ingest

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed event.schema.json
var eventSchema []byte

const schemaURL = "https://flowscribe.dev/schema/device-event.json"

// ErrInvalidEvent indicates a raw event that does not match the event schema.
var ErrInvalidEvent = errors.New("invalid device event")

// ElementDescriptor is the element as reported by the device.
type ElementDescriptor struct {
	ID             string `json:"id,omitempty"`
	Type           string `json:"type,omitempty"`
	Text           string `json:"text,omitempty"`
	SemanticsLabel string `json:"semanticsLabel,omitempty"`
	Key            string `json:"key,omitempty"`
	Finder         string `json:"finder,omitempty"`
}

// EventPayload holds the kind-specific fields of an interaction.
type EventPayload struct {
	Text      string           `json:"text,omitempty"`
	Direction action.Direction `json:"direction,omitempty"`
	TimeoutMs int64            `json:"timeoutMs,omitempty"`
	Condition action.Condition `json:"condition,omitempty"`
	Expected  string           `json:"expected,omitempty"`
}

// RawEvent is one interaction reported by the device collaborator.
type RawEvent struct {
	Flow              string            `json:"flow,omitempty"`
	ElementDescriptor ElementDescriptor `json:"elementDescriptor"`
	InteractionKind   action.Kind       `json:"interactionKind"`
	Payload           *EventPayload     `json:"payload,omitempty"`
	Timestamp         int64             `json:"timestamp,omitempty"`
	Description       string            `json:"description,omitempty"`
}

// Decoder validates and decodes raw events.
type Decoder struct {
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded event schema.
func NewDecoder() (*Decoder, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(eventSchema)); err != nil {
		return nil, fmt.Errorf("add event schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode validates one JSON document and decodes it.
func (d *Decoder) Decode(data []byte) (RawEvent, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := d.schema.Validate(doc); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	var evt RawEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return evt, nil
}

// ReadAll decodes a JSON Lines stream. Blank lines are skipped; the first
// invalid line fails the whole read.
func (d *Decoder) ReadAll(r io.Reader) ([]RawEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []RawEvent
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		evt, err := d.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return out, nil
}

var keyWrapper = regexp.MustCompile(`^(?:const\s+)?(?:Value)?Key(?:<\w+>)?\(\s*(?:'([^']*)'|"([^"]*)")\s*\)$`)

// NormalizeKey strips a Key('x') style wrapper from a stable key.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if m := keyWrapper.FindStringSubmatch(key); m != nil {
		return m[1] + m[2]
	}
	return key
}

// Locator builds the element locator for the descriptor.
func (e ElementDescriptor) Locator() locator.ElementLocator {
	return locator.ElementLocator{
		ElementID:      e.ID,
		ElementType:    e.Type,
		DisplayText:    e.Text,
		SemanticsLabel: e.SemanticsLabel,
		StableKey:      NormalizeKey(e.Key),
	}
}

// ToInput converts a raw event into an action input.
func ToInput(evt RawEvent) (action.Input, error) {
	var p EventPayload
	if evt.Payload != nil {
		p = *evt.Payload
	}
	payload, err := action.NewPayload(evt.InteractionKind, p.Text, p.Direction, p.TimeoutMs, p.Condition, p.Expected)
	if err != nil {
		return action.Input{}, err
	}
	in := action.Input{
		Locator:     evt.ElementDescriptor.Locator(),
		Payload:     payload,
		Description: evt.Description,
	}
	if err := in.Validate(); err != nil {
		return action.Input{}, err
	}
	return in, nil
}

// Inputs converts events in order, stopping at the first that does not convert.
func Inputs(events []RawEvent) ([]action.Input, error) {
	out := make([]action.Input, 0, len(events))
	for i, evt := range events {
		in, err := ToInput(evt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// GroupByFlow splits events into consecutive runs sharing a flow. Events
// without a flow join the current run, or fallback when none has started.
func GroupByFlow(events []RawEvent, fallback string) []Batch {
	var out []Batch
	for _, evt := range events {
		flowID := evt.Flow
		if flowID == "" {
			flowID = fallback
			if len(out) > 0 {
				flowID = out[len(out)-1].Flow
			}
		}
		if len(out) == 0 || out[len(out)-1].Flow != flowID {
			out = append(out, Batch{Flow: flowID})
		}
		out[len(out)-1].Events = append(out[len(out)-1].Events, evt)
	}
	return out
}

// Batch is a run of events recorded for one flow.
type Batch struct {
	Flow   string
	Events []RawEvent
}
