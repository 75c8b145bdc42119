package markers

import (
	"regexp"
	"strings"

	"teca-cli/internal/grammar"
)

// Span is one matched block, byte offsets into the scanned text. The payload
// is text[PayloadStart:PayloadEnd]; the whole block including delimiters is
// text[Start:End].
type Span struct {
	Start        int
	PayloadStart int
	PayloadEnd   int
	End          int
}

// FindSpans locates every non-overlapping start…end block left to right.
// A start always pairs with the nearest following end, so nested or repeated
// starts are swallowed into the payload and a start with no end after it is
// left in place.
func FindSpans(text string, d grammar.Delimiters) []Span {
	if d.Start == "" || d.End == "" {
		return nil
	}
	var spans []Span
	pos := 0
	for pos < len(text) {
		i := strings.Index(text[pos:], d.Start)
		if i < 0 {
			break
		}
		start := pos + i
		payloadStart := start + len(d.Start)
		j := strings.Index(text[payloadStart:], d.End)
		if j < 0 {
			break
		}
		payloadEnd := payloadStart + j
		end := payloadEnd + len(d.End)
		spans = append(spans, Span{
			Start:        start,
			PayloadStart: payloadStart,
			PayloadEnd:   payloadEnd,
			End:          end,
		})
		pos = end
	}
	return spans
}

// Extract returns the payload of every block in order and the text with
// those blocks, delimiters included, cut out. Nothing else is changed.
func Extract(text string, d grammar.Delimiters) ([]string, string) {
	spans := FindSpans(text, d)
	if len(spans) == 0 {
		return nil, text
	}
	payloads := make([]string, 0, len(spans))
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		payloads = append(payloads, text[s.PayloadStart:s.PayloadEnd])
		b.WriteString(text[last:s.Start])
		last = s.End
	}
	b.WriteString(text[last:])
	return payloads, b.String()
}

// Tokens is the result of running every grammar pass over one response.
type Tokens struct {
	Text      string
	Events    []string
	Places    []string
	Maps      []string
	Downloads []string
	Links     []string
}

// Count returns the number of payloads captured across all kinds.
func (t Tokens) Count() int {
	return len(t.Events) + len(t.Places) + len(t.Maps) + len(t.Downloads) + len(t.Links)
}

// Tokenize runs the passes in grammar order, each pass scanning the text
// left over by the previous one.
func Tokenize(text string, g grammar.Grammar) Tokens {
	out := Tokens{Text: text}
	for _, b := range g.Blocks() {
		var payloads []string
		payloads, out.Text = Extract(out.Text, b.Delimiters)
		switch b.Kind {
		case grammar.KindEvent:
			out.Events = payloads
		case grammar.KindPlace:
			out.Places = payloads
		case grammar.KindMap:
			out.Maps = payloads
		case grammar.KindDownload:
			out.Downloads = payloads
		case grammar.KindLink:
			out.Links = payloads
		}
	}
	return out
}

var (
	trailingCiteRe = regexp.MustCompile(`(?i)\s*\[CITE:\s*[^\]]*\]\s*$`)
	fenceOpenRe    = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\r?\n?")
	fenceCloseRe   = regexp.MustCompile("\\s*```\\s*$")
)

// StripDecorations removes a fenced code annotation around the payload and
// any trailing citation markers such as "[CITE: 3]".
func StripDecorations(payload string) string {
	s := strings.TrimSpace(payload)
	s = stripTrailingCites(s)
	if strings.HasPrefix(s, "```") {
		s = fenceOpenRe.ReplaceAllString(s, "")
		s = fenceCloseRe.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
		s = stripTrailingCites(s)
	}
	return s
}

func stripTrailingCites(s string) string {
	for {
		next := trailingCiteRe.ReplaceAllString(s, "")
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
}
