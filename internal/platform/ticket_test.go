package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignTicketPayload_Deterministic(t *testing.T) {
	payload := TicketPayload(1700000000)
	first := SignTicketPayload("shared-secret", payload)
	second := SignTicketPayload("shared-secret", payload)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA256 digest
}

func TestSignTicketPayload_DiffersBySecret(t *testing.T) {
	payload := TicketPayload(1700000000)
	a := SignTicketPayload("secret-a", payload)
	b := SignTicketPayload("secret-b", payload)
	assert.NotEqual(t, a, b)
}

func TestTicketPayload_IncludesTimestamp(t *testing.T) {
	assert.Equal(t, "ts=1700000000", TicketPayload(1700000000))
}
