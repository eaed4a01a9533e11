// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// =============================================================================
// WIRE FORMAT
// =============================================================================

// document is the on-disk shape. Conversations stay raw so that key order can
// be recovered from the token stream.
type document struct {
	Conversations json.RawMessage `json:"conversations"`
	ActiveChat    *string         `json:"active_chat"`
}

// UnmarshalJSON accepts the canonical object form and the legacy form, where a
// conversation was stored as its bare message array.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty conversation")
	}

	switch data[0] {
	case '[':
		var msgs []Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			return errors.Wrap(err, "legacy conversation")
		}
		c.Title = DefaultTitle
		c.Messages = nonNil(msgs)
		return nil

	case '{':
		var raw struct {
			Title    *string   `json:"title"`
			Messages []Message `json:"messages"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		c.Title = DefaultTitle
		if raw.Title != nil {
			c.Title = *raw.Title
		}
		c.Messages = nonNil(raw.Messages)
		return nil

	default:
		return fmt.Errorf("conversation must be an object or array, got %.16s", data)
	}
}

// MarshalJSON writes messages as an empty array rather than null.
func (c Conversation) MarshalJSON() ([]byte, error) {
	type plain Conversation
	p := plain(c)
	p.Messages = nonNil(p.Messages)
	return encodeNoEscape(p)
}

// decodeHistory parses a history document, preserving conversation order.
func decodeHistory(data []byte) (*History, error) {
	h := NewHistory()
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("history must be an object, got %.16s", data)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if err := decodeConversations(doc.Conversations, h); err != nil {
		return nil, err
	}
	if doc.ActiveChat != nil {
		h.activeID = *doc.ActiveChat
	}
	return h, nil
}

// decodeConversations walks the conversations object key by key.
func decodeConversations(raw json.RawMessage, h *History) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("conversations must be an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		// "" is reserved for "no active conversation".
		if id == "" {
			return errors.New("empty conversation id")
		}
		var conv Conversation
		if err := dec.Decode(&conv); err != nil {
			return errors.Wrapf(err, "conversation %s", id)
		}
		for i, msg := range conv.Messages {
			if !msg.Role.Valid() {
				return errors.Errorf("conversation %s: message %d has unknown role %q", id, i, msg.Role)
			}
		}
		h.put(id, &conv)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// encodeHistory renders the document with 4-space indentation.
func encodeHistory(h *History) ([]byte, error) {
	var body bytes.Buffer
	body.WriteByte('{')
	for i, id := range h.order {
		if i > 0 {
			body.WriteByte(',')
		}
		key, err := encodeNoEscape(id)
		if err != nil {
			return nil, err
		}
		val, err := encodeNoEscape(h.convs[id])
		if err != nil {
			return nil, errors.Wrapf(err, "conversation %s", id)
		}
		body.Write(key)
		body.WriteByte(':')
		body.Write(val)
	}
	body.WriteByte('}')

	doc := document{Conversations: body.Bytes()}
	if h.activeID != "" {
		active := h.activeID
		doc.ActiveChat = &active
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	return msgs
}
