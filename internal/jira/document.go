package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is an Atlassian Document Format value kept as raw JSON. It is
// stored compacted and never reflowed, so what the server sent is what is
// sent back.
type Document []byte

// TextDocument wraps plain text in a document with one paragraph per line.
// Empty text yields an empty Document.
func TextDocument(text string) Document {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type textNode struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type paragraph struct {
		Type    string     `json:"type"`
		Content []textNode `json:"content,omitempty"`
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	paragraphs := make([]paragraph, 0, len(lines))
	for _, line := range lines {
		p := paragraph{Type: "paragraph"}
		if line != "" {
			p.Content = []textNode{{Type: "text", Text: line}}
		}
		paragraphs = append(paragraphs, p)
	}

	data, _ := json.Marshal(struct {
		Type    string      `json:"type"`
		Version int         `json:"version"`
		Content []paragraph `json:"content"`
	}{Type: "doc", Version: 1, Content: paragraphs})
	return Document(data)
}

// IsZero reports whether the document is absent.
func (d Document) IsZero() bool { return len(d) == 0 }

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return []byte(d), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = nil
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("jira: document must be a JSON object")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return fmt.Errorf("jira: compact document: %w", err)
	}
	*d = Document(buf.Bytes())
	return nil
}

// Validate checks that the document is a JSON object of type "doc".
func (d Document) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("document is empty")
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(d, &head); err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if head.Type != "doc" {
		return fmt.Errorf("document type must be %q, got %q", "doc", head.Type)
	}
	return nil
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// Text blocks always end a line; containers only close an unterminated one.
var (
	adfTextBlocks = map[string]bool{"paragraph": true, "heading": true, "codeBlock": true, "rule": true}
	adfContainers = map[string]bool{"listItem": true, "blockquote": true, "tableRow": true, "panel": true, "mediaSingle": true}
)

// PlainText renders the document's text for display. Block nodes end with
// a newline and hard breaks become newlines; marks and attributes are
// dropped.
func (d Document) PlainText() string {
	if len(d) == 0 {
		return ""
	}
	var root adfNode
	if err := json.Unmarshal(d, &root); err != nil {
		return ""
	}

	var b strings.Builder
	writeADF(&b, root.Content)
	return strings.TrimRight(b.String(), "\n")
}

func writeADF(b *strings.Builder, nodes []adfNode) {
	for _, n := range nodes {
		switch n.Type {
		case "text":
			b.WriteString(n.Text)
		case "hardBreak":
			b.WriteByte('\n')
		default:
			writeADF(b, n.Content)
			switch {
			case adfTextBlocks[n.Type]:
				b.WriteByte('\n')
			case adfContainers[n.Type] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n"):
				b.WriteByte('\n')
			}
		}
	}
}
