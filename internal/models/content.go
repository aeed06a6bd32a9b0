package models

import (
	"encoding/json"
	"fmt"
)

const (
	partTypeText  = "text"
	partTypeImage = "image_url"

	// ImageDetailAuto is the fixed display-detail level attached to every
	// shaped image part.
	ImageDetailAuto = "auto"
)

// ContentPart is one block of structured message content.
type ContentPart interface {
	partType() string
}

// TextPart is a plain text content block.
type TextPart struct {
	Text string
}

func (TextPart) partType() string { return partTypeText }

// MarshalJSON emits {"type":"text","text":...}.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{partTypeText, p.Text})
}

// ImagePart is an image content block referencing a resolved URL or inline
// data URI.
type ImagePart struct {
	URL    string
	Detail string
}

func (ImagePart) partType() string { return partTypeImage }

type imageURLBody struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MarshalJSON emits {"type":"image_url","image_url":{"url":...,"detail":...}}.
func (p ImagePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string       `json:"type"`
		ImageURL imageURLBody `json:"image_url"`
	}{partTypeImage, imageURLBody{URL: p.URL, Detail: p.Detail}})
}

func unmarshalParts(data []byte) ([]ContentPart, error) {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return nil, fmt.Errorf("decode content parts: %w", err)
	}

	parts := make([]ContentPart, 0, len(rawParts))
	for i, raw := range rawParts {
		var head struct {
			Type     string       `json:"type"`
			Text     string       `json:"text"`
			ImageURL imageURLBody `json:"image_url"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("decode content part %d: %w", i, err)
		}

		switch head.Type {
		case partTypeText:
			parts = append(parts, TextPart{Text: head.Text})
		case partTypeImage:
			parts = append(parts, ImagePart{URL: head.ImageURL.URL, Detail: head.ImageURL.Detail})
		default:
			return nil, fmt.Errorf("content part %d: unsupported type %q", i, head.Type)
		}
	}
	return parts, nil
}
