package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	v := NewTicketVerifier("topsecret")
	now := time.Unix(1_700_000_000, 0)

	ticket := Mint("topsecret", "deep-diver", now.Add(time.Hour))
	nick, err := v.Verify(ticket, now)
	require.NoError(t, err)
	assert.Equal(t, "deep-diver", nick)
}

func TestTicketNicknameWithSeparators(t *testing.T) {
	v := NewTicketVerifier("s")
	now := time.Now()

	ticket := Mint("s", "a:b:c", now.Add(time.Minute))
	nick, err := v.Verify(ticket, now)
	require.NoError(t, err)
	assert.Equal(t, "a:b:c", nick)
}

func TestTicketExpired(t *testing.T) {
	v := NewTicketVerifier("topsecret")
	now := time.Unix(1_700_000_000, 0)

	ticket := Mint("topsecret", "late", now.Add(-time.Second))
	_, err := v.Verify(ticket, now)
	assert.ErrorIs(t, err, ErrTicketExpired)
}

func TestTicketWrongSecret(t *testing.T) {
	v := NewTicketVerifier("topsecret")
	now := time.Now()

	ticket := Mint("othersecret", "impostor", now.Add(time.Hour))
	_, err := v.Verify(ticket, now)
	assert.ErrorIs(t, err, ErrTicketSignature)
}

func TestTicketTampered(t *testing.T) {
	v := NewTicketVerifier("topsecret")
	now := time.Unix(1_700_000_000, 0)

	ticket := Mint("topsecret", "honest", now.Add(time.Hour))
	parts := strings.Split(ticket, ":")
	// Stretch the expiry without re-signing.
	parts[1] = "9999999999"
	_, err := v.Verify(strings.Join(parts, ":"), now)
	assert.ErrorIs(t, err, ErrTicketSignature)
}

func TestTicketMalformed(t *testing.T) {
	v := NewTicketVerifier("topsecret")
	now := time.Now()

	for _, ticket := range []string{"", "abc", "a:b", "!!!:123:00", "YQ:notanumber:00", "YQ:123:zz"} {
		_, err := v.Verify(ticket, now)
		assert.ErrorIs(t, err, ErrTicketFormat, "ticket %q", ticket)
	}
}

func TestVerifierEnabled(t *testing.T) {
	assert.False(t, NewTicketVerifier("").Enabled())
	assert.True(t, NewTicketVerifier("x").Enabled())
}
