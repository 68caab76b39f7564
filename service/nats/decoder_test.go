package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextDecoder_Decode(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		data    string
		want    string
		wantErr bool
	}{
		{
			name: "plain text passes through",
			expr: ".text",
			data: "Token Address: abc Amount: 5",
			want: "Token Address: abc Amount: 5",
		},
		{
			name: "json text field",
			expr: ".text",
			data: `{"id": "1", "text": "Amount: 5"}`,
			want: "Amount: 5",
		},
		{
			name: "nested field",
			expr: ".post.body",
			data: `{"post": {"body": "gm"}}`,
			want: "gm",
		},
		{
			name: "first element of array",
			expr: ".[0].text",
			data: `[{"text": "first"}, {"text": "second"}]`,
			want: "first",
		},
		{
			name: "brace without json is plain text",
			expr: ".text",
			data: "{not json",
			want: "{not json",
		},
		{
			name:    "missing field",
			expr:    ".text",
			data:    `{"body": "gm"}`,
			wantErr: true,
		},
		{
			name:    "non-string value",
			expr:    ".text",
			data:    `{"text": 42}`,
			wantErr: true,
		},
		{
			name:    "query error",
			expr:    ".text.inner",
			data:    `{"text": "gm"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewTextDecoder(tt.expr)
			require.NoError(t, err)

			got, err := decoder.Decode([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTextDecoder_InvalidExpression(t *testing.T) {
	_, err := NewTextDecoder(".text |")
	assert.Error(t, err)
}
