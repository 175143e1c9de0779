package upstream

import (
	"bytes"
	"encoding/json"

	"github.com/teranos/legisync/errors"
)

// Shape tags which form the upstream `dados` field took
type Shape int

const (
	ShapeSingle Shape = iota // {"dados": {...}}
	ShapeList                // {"dados": [...]}
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "single"
}

// Link is a hypermedia link from the response envelope
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Payload is a decoded upstream response.
// Exactly one of Single or List is meaningful, selected by Shape.
type Payload struct {
	Shape  Shape
	Single json.RawMessage
	List   []json.RawMessage
	Links  []Link
}

// DecodePayload decodes a response body. Bodies without a `dados` envelope
// are taken as the data itself.
func DecodePayload(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{Shape: ShapeList}, nil
	}

	data := trimmed
	var links []Link
	if trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return Payload{}, errors.Wrap(err, "decode response envelope")
		}
		if dados, ok := env["dados"]; ok {
			data = bytes.TrimSpace(dados)
			if len(data) == 0 {
				data = []byte("null")
			}
			if raw, ok := env["links"]; ok {
				if err := json.Unmarshal(raw, &links); err != nil {
					return Payload{}, errors.Wrap(err, "decode response links")
				}
			}
		}
	}

	switch {
	case bytes.Equal(data, []byte("null")):
		return Payload{Shape: ShapeList, Links: links}, nil
	case data[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return Payload{}, errors.Wrap(err, "decode list payload")
		}
		return Payload{Shape: ShapeList, List: list, Links: links}, nil
	case data[0] == '{':
		return Payload{Shape: ShapeSingle, Single: json.RawMessage(data), Links: links}, nil
	default:
		return Payload{}, errors.Newf("unexpected payload starting with %q", data[0])
	}
}

// Items normalizes the payload into an ordered list of entities
func (p Payload) Items() []json.RawMessage {
	if p.Shape == ShapeSingle {
		if p.Single == nil {
			return nil
		}
		return []json.RawMessage{p.Single}
	}
	return p.List
}

// Len returns the number of entities carried
func (p Payload) Len() int {
	return len(p.Items())
}

// Decode unmarshals a single-entity payload into v
func (p Payload) Decode(v any) error {
	if p.Shape != ShapeSingle {
		return errors.Newf("cannot decode %s payload into a single entity", p.Shape)
	}
	if err := json.Unmarshal(p.Single, v); err != nil {
		return errors.Wrap(err, "decode entity")
	}
	return nil
}

// Next returns the href of the `next` link, if the upstream sent one
func (p Payload) Next() (string, bool) {
	for _, l := range p.Links {
		if l.Rel == "next" {
			return l.Href, true
		}
	}
	return "", false
}
