package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClock(t *testing.T) {
	got, err := ParseClock("25-12-2025 14:30")
	assert.NoError(t, err)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.December, got.Month())
	assert.Equal(t, 25, got.Day())
	assert.Equal(t, 14, got.Hour())
	assert.Equal(t, 30, got.Minute())
}

func TestParseClockRejectsISO(t *testing.T) {
	_, err := ParseClock("2025-12-25T14:30:00Z")
	assert.Error(t, err)
}

func TestFormatClockRoundTrip(t *testing.T) {
	in := "03-01-2026 09:05"
	parsed, err := ParseClock(in)
	assert.NoError(t, err)
	assert.Equal(t, in, FormatClock(parsed))
}

func TestClockJSON(t *testing.T) {
	var c Clock
	err := json.Unmarshal([]byte(`"07-06-2025 18:45"`), &c)
	assert.NoError(t, err)

	b, err := json.Marshal(c)
	assert.NoError(t, err)
	assert.Equal(t, `"07-06-2025 18:45"`, string(b))
}

func TestClockJSONEmpty(t *testing.T) {
	var c Clock
	err := json.Unmarshal([]byte(`""`), &c)
	assert.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestMessageInConversation(t *testing.T) {
	m := Message{SenderID: "a", ReceiverID: "b"}
	assert.True(t, m.InConversation("a", "b"))
	assert.True(t, m.InConversation("b", "a"))
	assert.False(t, m.InConversation("a", "c"))
	assert.False(t, m.InConversation("c", "b"))
}
