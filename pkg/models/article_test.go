package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ReadingTime
	}{
		{"number", `{"readingTime": 7}`, 7},
		{"string with suffix", `{"readingTime": "5 min read"}`, 5},
		{"bare string", `{"readingTime": "12"}`, 12},
		{"garbage", `{"readingTime": "soon"}`, 0},
		{"null", `{"readingTime": null}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m DraftMetadata
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.Equal(t, tt.want, m.ReadingTime)
		})
	}
}

func TestDraft_MarkdownNullWhenMissing(t *testing.T) {
	d := Draft{DraftMetadata: DraftMetadata{Slug: "a", Status: StatusDraft}}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"markdown":null`)
	assert.Contains(t, string(b), `"slug":"a"`)
}
