package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

func TestDefaultMessageParser(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "type only", input: `{"type":"t"}`},
		{name: "null metadata", input: `{"type":"t","metadata":null}`},
		{name: "missing type", input: `{"metadata":{}}`, wantErr: true},
		{name: "unexpected property", input: `{"type":"t","body":"x"}`, wantErr: true},
		{name: "metadata not object", input: `{"type":"t","metadata":[1]}`, wantErr: true},
		{name: "bad date", input: `{"type":"t","creationDate":"yesterday"}`, wantErr: true},
		{name: "not object", input: `[1]`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultMessageParser{}.Parse(json.RawMessage(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrValidation)
				return
			}
			require.NoError(t, err)
			msg, ok := got.(*model.Message)
			require.True(t, ok)
			assert.Equal(t, "t", msg.Type)
		})
	}
}
