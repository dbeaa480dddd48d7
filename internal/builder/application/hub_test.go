package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

func TestHub_SlowSubscriberKeepsLatest(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		h.Publish("s1", domain.OrderState{Ingredients: domain.Counts{domain.Meat: i}})
	}

	var last domain.OrderState
	for i := 0; i < subscriberBuffer; i++ {
		last = <-ch
	}
	assert.Equal(t, subscriberBuffer+2, last.Ingredients[domain.Meat])
}

func TestHub_PublishIsScopedToSession(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("a")
	b, cancelB := h.Subscribe("b")
	defer cancelA()
	defer cancelB()

	h.Publish("a", domain.OrderState{Purchasing: true})

	require.Len(t, a, 1)
	assert.Len(t, b, 0)
}

func TestHub_CancelAndClose(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("s1")
	other, _ := h.Subscribe("s1")
	assert.Equal(t, 2, h.Subscribers("s1"))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers("s1"))

	h.Close("s1")
	_, open = <-other
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("s1"))
}
