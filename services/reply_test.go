package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReply_TextPriority(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name:  "answer wins",
			reply: Reply{Answer: "a", Result: "r", Output: "o"},
			want:  "a",
		},
		{
			name:  "result when answer empty",
			reply: Reply{Result: "r", Output: "o"},
			want:  "r",
		},
		{
			name:  "output when answer and result empty",
			reply: Reply{Output: "o"},
			want:  "o",
		},
		{
			name: "first non-blank string field",
			reply: Reply{Fields: []ReplyField{
				{Key: "note", Value: "   "},
				{Key: "text", Value: "try a short walk"},
				{Key: "extra", Value: "ignored"},
			}},
			want: "try a short walk",
		},
		{
			name:  "fallback when nothing usable",
			reply: Reply{Fields: []ReplyField{{Key: "note", Value: " \n"}}},
			want:  FallbackAnswer,
		},
		{
			name:  "fallback for empty reply",
			reply: Reply{},
			want:  FallbackAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reply.Text())
		})
	}
}

func TestReply_JSONLookingAnswerIsKeptVerbatim(t *testing.T) {
	for _, text := range []string{`{"score": 1}`, `{"tip": "Breathe"}`, "```json\n{}\n```"} {
		assert.Equal(t, text, Reply{Answer: text}.Text())
	}
}
