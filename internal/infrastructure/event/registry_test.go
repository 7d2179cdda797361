package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("typed handlers come before wildcards", func(t *testing.T) {
		r := NewHandlerRegistry()
		wildcard := newTestHandler()
		typed := newTestHandler("DocumentPaid")
		r.Register(wildcard)
		r.Register(typed, "DocumentPaid")

		got := r.Handlers("DocumentPaid")
		assert.Len(t, got, 2)
		assert.Same(t, typed, got[0])
		assert.Same(t, wildcard, got[1])

		assert.Len(t, r.Handlers("AccountCreated"), 1)
	})

	t.Run("one handler on several types", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "PaymentProcessed", "PaymentVoided")

		assert.Len(t, r.Handlers("PaymentProcessed"), 1)
		assert.Len(t, r.Handlers("PaymentVoided"), 1)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("unregister removes every subscription", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		other := newTestHandler()
		r.Register(h, "PaymentProcessed", "PaymentVoided")
		r.Register(h)
		r.Register(other, "PaymentVoided")

		r.Unregister(h)

		assert.Empty(t, r.Handlers("PaymentProcessed"))
		assert.Len(t, r.Handlers("PaymentVoided"), 1)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("empty registry", func(t *testing.T) {
		r := NewHandlerRegistry()
		assert.Empty(t, r.Handlers("anything"))
		assert.Zero(t, r.Count())
	})
}
