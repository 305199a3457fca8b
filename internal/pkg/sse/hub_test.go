package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesTopicSubscribers(t *testing.T) {
	hub := NewHub()

	payments, cancelPayments := hub.Subscribe("salary_payments")
	defer cancelPayments()
	other, cancelOther := hub.Subscribe("other")
	defer cancelOther()

	hub.Publish("salary_payments", Event{Event: "salary_payment.created", Data: "p-1"})

	select {
	case evt := <-payments:
		assert.Equal(t, "salary_payments", evt.Topic)
		assert.Equal(t, "salary_payment.created", evt.Event)
		assert.Equal(t, "p-1", evt.Data)
	default:
		t.Fatal("expected an event on salary_payments")
	}

	select {
	case evt := <-other:
		t.Fatalf("unexpected event on other topic: %+v", evt)
	default:
	}
}

func TestHub_CleanupRemovesSubscriber(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("salary_payments")
	_, cancel2 := hub.Subscribe("salary_payments")
	assert.Equal(t, 2, hub.SubscriberCount("salary_payments"))
	assert.Equal(t, 2, hub.TotalSubscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 1, hub.SubscriberCount("salary_payments"))

	cancel2()
	assert.Equal(t, 0, hub.TotalSubscribers())
}

func TestHub_PublishDoesNotBlockOnFullBuffer(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("salary_payments")
	defer cancel()

	for i := 0; i < hub.bufferSize+5; i++ {
		hub.Publish("salary_payments", Event{Event: "tick", Data: i})
	}

	require.Len(t, ch, hub.bufferSize)
	first := <-ch
	assert.Equal(t, 0, first.Data)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("salary_payments")

	hub.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.TotalSubscribers())

	late, _ := hub.Subscribe("salary_payments")
	_, open = <-late
	assert.False(t, open)
}
