package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePushPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *PushPayload
		wantErr bool
	}{
		{
			name: "main push",
			body: `{"ref":"refs/heads/main","after":"abc123","repository":{"name":"gatus"}}`,
			want: &PushPayload{Ref: "refs/heads/main", After: "abc123"},
		},
		{
			name: "ping event has no ref",
			body: `{"zen":"Keep it logically awesome.","hook_id":1}`,
			want: &PushPayload{},
		},
		{
			name: "empty object",
			body: `{}`,
			want: &PushPayload{},
		},
		{
			name: "non-string ref is ignored",
			body: `{"ref":42,"after":null}`,
			want: &PushPayload{},
		},
		{
			name: "unrelated fields of any type pass through",
			body: `{"ref":"refs/heads/develop","commits":[1,"two",{"three":3}],"forced":true}`,
			want: &PushPayload{Ref: "refs/heads/develop"},
		},
		{name: "malformed JSON", body: `{"ref":`, wantErr: true},
		{name: "array", body: `["refs/heads/main"]`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePushPayload([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBranchRef(t *testing.T) {
	assert.Equal(t, "refs/heads/main", BranchRef("main"))
	assert.Equal(t, "refs/heads/release/v2", BranchRef("release/v2"))
}
