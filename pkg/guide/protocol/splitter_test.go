package protocol

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

func TestLineSplitter(t *testing.T) {
	var s LineSplitter

	assert.Empty(t, s.Push([]byte(`{"a":`)))
	assert.Equal(t, 5, s.Pending())
	assert.Equal(t, []string{`{"a":1}`}, toStrings(s.Push([]byte("1}\r\n\n  \n{\"b\""))))
	assert.Equal(t, []string{`{"b":2}`, `{"c":3}`}, toStrings(s.Push([]byte(":2}\n```json\n{\"c\":3}\n```\n{\"d\""))))
	assert.Equal(t, `{"d"`, string(s.Flush()))
	assert.Nil(t, s.Flush())
	assert.Equal(t, 0, s.Pending())
}

func TestLineSplitter_LinesDoNotAliasBuffer(t *testing.T) {
	var s LineSplitter
	first := s.Push([]byte("one\ntw"))
	s.Push([]byte("o\nthree\n"))
	assert.Equal(t, []string{"one"}, toStrings(first))
}

func TestUTF8Decoder(t *testing.T) {
	text := "Él ✝ 🙏 amen"
	raw := []byte(text)

	for split := 0; split <= len(raw); split++ {
		var d utf8Decoder
		out := append([]byte(nil), d.Decode(raw[:split])...)
		assert.True(t, utf8.Valid(out), "split at %d", split)
		out = append(out, d.Decode(raw[split:])...)
		out = append(out, d.Flush()...)
		assert.Equal(t, text, string(out), "split at %d", split)
	}
}

func TestUTF8Decoder_ByteAtATime(t *testing.T) {
	text := "Salmo 23 — El Señor es mi pastor 🐑"
	var d utf8Decoder
	var out []byte
	for _, b := range []byte(text) {
		piece := d.Decode([]byte{b})
		assert.True(t, utf8.Valid(piece))
		out = append(out, piece...)
	}
	out = append(out, d.Flush()...)
	assert.Equal(t, text, string(out))
}

func TestUTF8Decoder_TruncatedTailIsFlushed(t *testing.T) {
	var d utf8Decoder
	raw := []byte("ok🙏")
	assert.Equal(t, "ok", string(d.Decode(raw[:4])))
	assert.Equal(t, raw[2:4], d.Flush())
}

func TestSession(t *testing.T) {
	var drops []DropReason
	s := NewSession(func(r DropReason) { drops = append(drops, r) })

	assert.Equal(t, StateStreaming, s.State())
	assert.False(t, s.AcceptDone())

	for i := 0; i < 3; i++ {
		assert.True(t, s.AcceptSuggestion())
	}
	assert.Equal(t, StateAccepting, s.State())
	assert.True(t, s.AcceptDone())
	assert.Equal(t, StateDone, s.State())
	assert.False(t, s.AcceptDone())
	assert.False(t, s.AcceptSuggestion())

	assert.Equal(t, []DropReason{DropInvalidSuggestionCount, DropDuplicateDone, DropAfterDone}, drops)
	assert.Equal(t, map[DropReason]int{
		DropInvalidSuggestionCount: 1,
		DropDuplicateDone:          1,
		DropAfterDone:              1,
	}, s.Drops())
	assert.Equal(t, 3, s.Summary().Accepted)
	assert.Equal(t, "DONE", s.State().String())
}

func TestSession_DoneAcceptedIffCountInRange(t *testing.T) {
	for n := 0; n <= 7; n++ {
		s := NewSession(nil)
		for i := 0; i < n; i++ {
			s.AcceptSuggestion()
		}
		expected := n >= MinSuggestionsForDone
		assert.Equal(t, expected, s.AcceptDone(), "after %d suggestions", n)
		if !expected {
			assert.False(t, s.IsDone())
		}
	}
}
