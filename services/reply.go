package services

import "strings"

// FallbackAnswer is returned when a generation carries no usable text.
const FallbackAnswer = "Sorry, I couldn't generate a reply."

// ReplyField is one extra string-valued field a generator may attach.
type ReplyField struct {
	Key   string
	Value string
}

// Reply is the typed output of a generation call. Answer, Result and Output
// are checked first, in that order; Fields holds any other string fields in
// the order the generator produced them.
type Reply struct {
	Answer string
	Result string
	Output string
	Fields []ReplyField
}

// Text picks the reply text: answer, then result, then output, then the first
// non-blank string field, then FallbackAnswer.
func (r Reply) Text() string {
	for _, s := range []string{r.Answer, r.Result, r.Output} {
		if s != "" {
			return s
		}
	}
	for _, f := range r.Fields {
		if strings.TrimSpace(f.Value) != "" {
			return f.Value
		}
	}
	return FallbackAnswer
}
