package codec

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/webitel/im-tag-router/internal/domain/model"
)

const (
	fieldMessage  = "message"
	fieldTags     = "tags"
	fieldMetadata = "metadata"
)

// MessageParser turns a structured "message" property into an application payload.
type MessageParser interface {
	Parse(raw json.RawMessage) (any, error)
}

// MessageParserFunc adapts a function to MessageParser.
type MessageParserFunc func(raw json.RawMessage) (any, error)

func (f MessageParserFunc) Parse(raw json.RawMessage) (any, error) { return f(raw) }

// WireRequest is the structural form of a request, ready for json.Marshal.
type WireRequest struct {
	Message  any            `json:"message"`
	Tags     model.TagSet   `json:"tags"`
	Metadata map[string]any `json:"metadata"`
}

// DecodeText parses transport text and decodes it as a request.
func DecodeText(text []byte, parser MessageParser) (*model.Request, error) {
	trimmed := bytes.TrimSpace(text)
	if !json.Valid(trimmed) {
		return nil, model.Validationf("codec.decode_text", "failed to decode the provided JSON string")
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, model.Validationf("codec.decode_text", "the decoded JSON string is not an object")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, model.Validationf("codec.decode_text", "failed to decode the provided JSON string").WithCause(err)
	}
	return Decode(obj, parser)
}

// Decode validates a structural wire object and builds a Request.
func Decode(obj map[string]json.RawMessage, parser MessageParser) (*model.Request, error) {
	if unexpected := unexpectedFields(obj); len(unexpected) > 0 {
		return nil, model.Validationf("codec.decode", "unexpected property '%s'", strings.Join(unexpected, "', '"))
	}

	rawMsg, ok := obj[fieldMessage]
	if !ok {
		return nil, model.Validationf("codec.decode", "the 'message' property is mandatory")
	}

	msg, err := decodeMessage(rawMsg, parser)
	if err != nil {
		return nil, err
	}

	req := model.NewRequest(msg)

	if raw, ok := obj[fieldTags]; ok && !isNull(raw) {
		tags, err := model.ParseTagSet(raw)
		if err != nil {
			return nil, model.Validationf("codec.decode", "invalid 'tags' property").WithCause(err)
		}
		req.Tags = tags
	}

	if raw, ok := obj[fieldMetadata]; ok && !isNull(raw) {
		md, err := decodeObject(raw)
		if err != nil {
			return nil, model.Validationf("codec.decode", "invalid 'metadata' property").WithCause(err)
		}
		req.Metadata = md
	}

	return req, nil
}

// ToWire renders a request in its structural wire form.
func ToWire(req *model.Request) WireRequest {
	w := WireRequest{
		Message:  req.Message,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}
	if w.Tags == nil {
		w.Tags = model.TagSet{}
	}
	if w.Metadata == nil {
		w.Metadata = map[string]any{}
	}
	return w
}

// Encode serialises a request to wire JSON.
func Encode(req *model.Request) ([]byte, error) {
	if req == nil {
		return nil, model.Validationf("codec.encode", "nil request")
	}
	data, err := json.Marshal(ToWire(req))
	if err != nil {
		return nil, model.Validationf("codec.encode", "request is not serializable").WithCause(err)
	}
	return data, nil
}

// EncodeMessage serialises only the payload, which is what recipients receive.
func EncodeMessage(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, model.Validationf("codec.encode_message", "message is not serializable").WithCause(err)
	}
	return data, nil
}

func decodeMessage(raw json.RawMessage, parser MessageParser) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, model.Validationf("codec.decode", "invalid 'message' property").WithCause(err)
		}
		return s, nil
	}

	if isNull(raw) {
		return nil, model.Validationf("codec.decode", "the 'message' property must not be null")
	}

	if parser == nil {
		return nil, model.Validationf("codec.decode", "the 'message' property is not a string, a message parser must be configured")
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		return nil, model.Validationf("codec.decode", "invalid 'message' property").WithCause(err)
	}
	return msg, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, model.Validationf("codec.decode", "expected a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func unexpectedFields(obj map[string]json.RawMessage) []string {
	var out []string
	for k := range obj {
		switch k {
		case fieldMessage, fieldTags, fieldMetadata:
		default:
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
