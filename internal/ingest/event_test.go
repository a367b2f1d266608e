package ingest_test

import (
	"strings"
	"testing"

	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/ingest"
	"github.com/stretchr/testify/require"
)

const registrationFeed = `
{"flow":"registration","timestamp":1000,"interactionKind":"tap","elementDescriptor":{"id":"signup_button","type":"ElevatedButton","text":"Sign Up","key":"Key('signup_btn')"},"description":"Tap Sign Up button"}
{"flow":"registration","timestamp":2000,"interactionKind":"enterText","elementDescriptor":{"type":"TextFormField","semanticsLabel":"Email Address"},"payload":{"text":"a@b.com"}}

{"flow":"registration","timestamp":3000,"interactionKind":"tap","elementDescriptor":{"type":"Text","text":"Create Account"}}
`

func newDecoder(t *testing.T) *ingest.Decoder {
	t.Helper()
	d, err := ingest.NewDecoder()
	require.NoError(t, err)
	return d
}

func TestDecoder_ReadAll(t *testing.T) {
	events, err := newDecoder(t).ReadAll(strings.NewReader(registrationFeed))
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, action.KindTap, events[0].InteractionKind)
	require.Equal(t, "Key('signup_btn')", events[0].ElementDescriptor.Key)
	require.Equal(t, "a@b.com", events[1].Payload.Text)

	inputs, err := ingest.Inputs(events)
	require.NoError(t, err)
	require.Equal(t, locator.ElementLocator{
		ElementID:   "signup_button",
		ElementType: "ElevatedButton",
		DisplayText: "Sign Up",
		StableKey:   "signup_btn",
	}, inputs[0].Locator)
	require.Equal(t, "Tap Sign Up button", inputs[0].Description)
	require.Equal(t, action.EnterText{Text: "a@b.com"}, inputs[1].Payload)
	require.Equal(t, action.Tap{}, inputs[2].Payload)
}

func TestDecoder_RejectsInvalidEvents(t *testing.T) {
	d := newDecoder(t)
	cases := map[string]string{
		"not json":         `{"interactionKind":`,
		"unknown kind":     `{"interactionKind":"pinch","elementDescriptor":{"text":"OK"}}`,
		"type only":        `{"interactionKind":"tap","elementDescriptor":{"type":"Button"}}`,
		"empty key":        `{"interactionKind":"tap","elementDescriptor":{"key":""}}`,
		"bad direction":    `{"interactionKind":"swipe","elementDescriptor":{"text":"List"},"payload":{"direction":"diagonal"}}`,
		"negative timeout": `{"interactionKind":"wait","elementDescriptor":{"text":"Home"},"payload":{"timeoutMs":-5}}`,
		"missing element":  `{"interactionKind":"tap"}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode([]byte(doc))
			require.ErrorIs(t, err, ingest.ErrInvalidEvent)
		})
	}

	_, err := d.ReadAll(strings.NewReader("{\"interactionKind\":\"tap\",\"elementDescriptor\":{\"text\":\"OK\"}}\n{}\n"))
	require.ErrorIs(t, err, ingest.ErrInvalidEvent)
	require.Contains(t, err.Error(), "line 2")
}

func TestToInput_Payloads(t *testing.T) {
	d := newDecoder(t)
	cases := []struct {
		doc  string
		want action.Payload
	}{
		{`{"interactionKind":"swipe","elementDescriptor":{"text":"Chats"},"payload":{"direction":"left"}}`, action.Swipe{Direction: action.DirectionLeft}},
		{`{"interactionKind":"wait","elementDescriptor":{"text":"Home"}}`, action.Wait{TimeoutMs: action.DefaultWaitTimeoutMs}},
		{`{"interactionKind":"wait","elementDescriptor":{"text":"Home"},"payload":{"timeoutMs":2500}}`, action.Wait{TimeoutMs: 2500}},
		{`{"interactionKind":"assert","elementDescriptor":{"text":"Welcome"}}`, action.Assert{Condition: action.ConditionVisible}},
		{`{"interactionKind":"assert","elementDescriptor":{"key":"title"},"payload":{"condition":"textEquals","expected":"Hi"}}`, action.Assert{Condition: action.ConditionTextEquals, Expected: "Hi"}},
	}
	for _, tc := range cases {
		evt, err := d.Decode([]byte(tc.doc))
		require.NoError(t, err, tc.doc)
		in, err := ingest.ToInput(evt)
		require.NoError(t, err, tc.doc)
		require.Equal(t, tc.want, in.Payload)
	}

	evt, err := d.Decode([]byte(`{"interactionKind":"assert","elementDescriptor":{"text":"Title"},"payload":{"condition":"textEquals"}}`))
	require.NoError(t, err)
	_, err = ingest.ToInput(evt)
	require.ErrorIs(t, err, action.ErrInvalidPayload)
}

func TestNormalizeKey(t *testing.T) {
	cases := [][2]string{
		{"Key('signup_btn')", "signup_btn"},
		{`Key("email")`, "email"},
		{"const Key('send')", "send"},
		{"ValueKey<String>('row_1')", "row_1"},
		{"ValueKey('row_2')", "row_2"},
		{"  plain_key ", "plain_key"},
		{"GlobalKey()", "GlobalKey()"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc[1], ingest.NormalizeKey(tc[0]), tc[0])
	}
}

func TestGroupByFlow(t *testing.T) {
	events := []ingest.RawEvent{
		{InteractionKind: action.KindTap},
		{Flow: "messaging", InteractionKind: action.KindTap},
		{InteractionKind: action.KindEnterText},
		{Flow: "voice-call", InteractionKind: action.KindTap},
		{Flow: "messaging", InteractionKind: action.KindTap},
	}
	batches := ingest.GroupByFlow(events, "default")
	require.Len(t, batches, 4)
	require.Equal(t, "default", batches[0].Flow)
	require.Equal(t, "messaging", batches[1].Flow)
	require.Len(t, batches[1].Events, 2)
	require.Equal(t, "voice-call", batches[2].Flow)
	require.Equal(t, "messaging", batches[3].Flow)
}
