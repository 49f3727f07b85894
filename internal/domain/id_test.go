package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	cases := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{in: "7.42", want: NewID(7, 42)},
		{in: "42", want: NewID(3, 42)},
		{in: " 5 ", want: NewID(3, 5)},
		{in: "null", want: NullID},
		{in: "", want: NullID},
		{in: "abc", wantErr: true},
		{in: "1.x", wantErr: true},
		{in: "99999999999.1", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseID(3, tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidID, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestIDNullSemantics(t *testing.T) {
	assert.True(t, NullID.IsNull())
	assert.True(t, NewID(9, 0).IsNull())
	assert.True(t, NewID(9, 0).Equal(NullID))
	assert.False(t, NewID(9, 1).Equal(NewID(8, 1)))
	assert.Equal(t, "null", NewID(4, 0).String())
	assert.Equal(t, "4.12", NewID(4, 12).String())
}

func TestIDJSONRoundTripInsideEntity(t *testing.T) {
	msg := Message{ID: NewID(1, 2), Author: NewID(1, 1), Created: FromMillis(1500), Content: "hi"}
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":"1.2"`)
	assert.Contains(t, string(b), `"next":"null"`)

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, msg.ID, back.ID)
	assert.True(t, back.Next.IsNull())
	assert.True(t, msg.Created.Equal(back.Created))
}

func TestNormalizeTimeDropsSubMillisecond(t *testing.T) {
	in := time.Date(2024, 3, 1, 10, 0, 0, 1_234_567, time.UTC)
	out := NormalizeTime(in)
	assert.Equal(t, 1_000_000, out.Nanosecond())
	assert.Equal(t, Millis(in), Millis(out))
}

func TestConversationCloneIsIndependent(t *testing.T) {
	c := Conversation{ID: NewID(1, 1), Participants: []ID{NewID(1, 2)}}
	cp := c.Clone()
	cp.Participants[0] = NewID(1, 3)
	assert.Equal(t, NewID(1, 2), c.Participants[0])
	assert.True(t, c.HasParticipant(NewID(1, 2)))
}
