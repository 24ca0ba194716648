package prover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func TestDedupeKeyEquality(t *testing.T) {
	t.Parallel()
	base := Record{Status: StatusAssigned, ID: "x1", UpdatedAt: ts(1000), Requester: "aa"}

	same := base
	same.Requester = "bb"
	same.CreatedAt = ts(10)
	assert.Equal(t, base.Key(), same.Key(), "fields outside (status, id, updatedAt) must not affect the key")

	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"status", func(r *Record) { r.Status = StatusFulfilled }},
		{"id", func(r *Record) { r.ID = "x2" }},
		{"updatedAt", func(r *Record) { r.UpdatedAt = ts(2000) }},
		{"updatedAt missing", func(r *Record) { r.UpdatedAt = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			assert.NotEqual(t, base.Key(), r.Key())
		})
	}
}

func TestDedupeKeySubSecondUpdate(t *testing.T) {
	t.Parallel()
	at := time.Unix(1000, 0)
	later := at.Add(time.Nanosecond)
	a := Record{Status: StatusAssigned, ID: "x", UpdatedAt: &at}
	b := Record{Status: StatusAssigned, ID: "x", UpdatedAt: &later}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, "ASSIGNED:x:1000000000000", a.Key().String())
	assert.Equal(t, "ASSIGNED:x:1000000000001", b.Key().String())
}

func TestDedupeKeyZeroVersusMissing(t *testing.T) {
	t.Parallel()
	a := Record{Status: StatusAssigned, ID: "x", UpdatedAt: ts(0)}
	b := Record{Status: StatusAssigned, ID: "x"}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, "ASSIGNED:x:0", a.Key().String())
	assert.Equal(t, "ASSIGNED:x:-", b.Key().String())
}

func TestLastActivity(t *testing.T) {
	t.Parallel()
	r := &Record{CreatedAt: ts(5)}
	at, ok := r.LastActivity()
	require.True(t, ok)
	assert.Equal(t, int64(5), at.Unix())

	r.UpdatedAt = ts(9)
	at, _ = r.LastActivity()
	assert.Equal(t, int64(9), at.Unix())

	_, ok = (&Record{}).LastActivity()
	assert.False(t, ok)
}

func TestParseAddress(t *testing.T) {
	t.Parallel()
	a, err := ParseAddress(" 0xABcd01 ")
	require.NoError(t, err)
	assert.Equal(t, Address{0xab, 0xcd, 0x01}, a)
	assert.Equal(t, "0xabcd01", a.Hex())

	_, err = ParseAddress("abcd")
	require.NoError(t, err)

	for _, raw := range []string{"", "0x", "0xzz", "abc"} {
		_, err := ParseAddress(raw)
		assert.ErrorIs(t, err, ErrInvalidAddress, raw)
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	s, err := ParseStatus("fulfilled")
	require.NoError(t, err)
	assert.Equal(t, StatusFulfilled, s)

	b, err := StatusAssigned.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ASSIGNED", string(b))

	var got Status
	require.NoError(t, got.UnmarshalText([]byte("ASSIGNED")))
	assert.Equal(t, StatusAssigned, got)
	assert.Error(t, got.UnmarshalText([]byte("bogus")))

	assert.Equal(t, []Status{StatusAssigned, StatusFulfilled}, Priority)
}
