package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const doneSentinel = "[DONE]"

type frameKind int

const (
	frameSkip frameKind = iota
	frameText
	frameDone
	frameError
)

type frame struct {
	Type    string          `json:"type"`
	Delta   string          `json:"delta"`
	Text    string          `json:"text"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// parseLine classifies one line of the event stream. Lines that are not
// data lines, and data that cannot be decoded, are skipped.
func parseLine(line string) (frameKind, string) {
	line = strings.TrimSpace(line)
	payload, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return frameSkip, ""
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return frameSkip, ""
	}
	if payload == doneSentinel {
		return frameDone, ""
	}

	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return frameSkip, ""
	}
	if msg := errorMessage(f.Error); msg != "" {
		return frameError, msg
	}
	switch f.Type {
	case "error":
		if f.Message == "" {
			return frameError, "unknown error"
		}
		return frameError, f.Message
	case "text-delta":
		if f.Delta == "" {
			return frameSkip, ""
		}
		return frameText, f.Delta
	case "":
		if f.Text != "" {
			return frameText, f.Text
		}
		if f.Delta != "" {
			return frameText, f.Delta
		}
	}
	return frameSkip, ""
}

// errorMessage reads an error field that may be a string or an object with a
// message.
func errorMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	if bytes.Equal(raw, []byte("{}")) {
		return ""
	}
	return string(raw)
}
