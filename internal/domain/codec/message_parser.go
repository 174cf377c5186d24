package codec

import (
	"encoding/json"
	"time"

	"github.com/webitel/im-tag-router/internal/domain/model"
)

var _ MessageParser = (*DefaultMessageParser)(nil)

// DefaultMessageParser decodes the example payload contract into *model.Message.
type DefaultMessageParser struct{}

func (DefaultMessageParser) Parse(raw json.RawMessage) (any, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, model.Validationf("message.parse", "message must be a JSON object")
	}

	for k := range obj {
		switch k {
		case "type", "creationDate", "metadata":
		default:
			return nil, model.Validationf("message.parse", "unexpected property '%s'", k)
		}
	}

	rawType, ok := obj["type"]
	if !ok {
		return nil, model.Validationf("message.parse", "no 'type' property found")
	}

	msg := &model.Message{}
	if err := json.Unmarshal(rawType, &msg.Type); err != nil {
		return nil, model.Validationf("message.parse", "the 'type' property is not a string")
	}

	if rawDate, ok := obj["creationDate"]; ok && !isNull(rawDate) {
		var s string
		if err := json.Unmarshal(rawDate, &s); err != nil {
			return nil, model.Validationf("message.parse", "the 'creationDate' property is not a string")
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, model.Validationf("message.parse", "the 'creationDate' property is not an ISO-8601 date").WithCause(err)
		}
		msg.CreationDate = &ts
	}

	if rawMd, ok := obj["metadata"]; ok && !isNull(rawMd) {
		md, err := decodeObject(rawMd)
		if err != nil {
			return nil, model.Validationf("message.parse", "the 'metadata' property is not an object").WithCause(err)
		}
		msg.Metadata = md
	}

	return msg, nil
}
