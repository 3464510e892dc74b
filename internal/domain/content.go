package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const BlockTypeText = "text"

// ContentBlock is one typed part of a structured message content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Content holds a message content that arrives either as a plain string or as
// an ordered list of typed blocks. Exactly one of the two forms is set after
// decoding; a JSON null leaves both empty.
type Content struct {
	text   string
	blocks []ContentBlock
	isList bool
}

func TextContent(s string) Content {
	return Content{text: s}
}

func BlockContent(blocks ...ContentBlock) Content {
	return Content{blocks: blocks, isList: true}
}

func (c Content) IsBlocks() bool {
	return c.isList
}

func (c Content) Blocks() []ContentBlock {
	return c.blocks
}

// Text flattens the content into a single string. Blocks not typed as text
// are skipped and the remaining texts are joined with a single space.
func (c Content) Text() string {
	if !c.isList {
		return c.text
	}
	parts := make([]string, 0, len(c.blocks))
	for _, b := range c.blocks {
		if b.Type == BlockTypeText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = Content{}
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("domain: decode text content: %w", err)
		}
		*c = TextContent(s)
		return nil
	case trimmed[0] == '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return fmt.Errorf("domain: decode content blocks: %w", err)
		}
		*c = BlockContent(blocks...)
		return nil
	default:
		return fmt.Errorf("domain: unsupported content shape starting with %q", trimmed[0])
	}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.isList {
		if c.blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.blocks)
	}
	return json.Marshal(c.text)
}
