package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

func TestBus_DeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(domain.KindPermission, "req-1")
	defer cancel()

	bus.Publish(domain.Decision{RequestID: "req-1", Kind: domain.KindPermission, Approved: true})

	select {
	case d := <-ch:
		assert.True(t, d.Approved)
		assert.Equal(t, "req-1", d.RequestID)
	case <-time.After(time.Second):
		t.Fatal("decision was not delivered")
	}
}

func TestBus_FiltersByKindAndID(t *testing.T) {
	bus := NewBus(zap.NewNop())

	chPerm, cancelPerm := bus.Subscribe(domain.KindPermission, "req-1")
	defer cancelPerm()
	chOther, cancelOther := bus.Subscribe(domain.KindPermission, "req-2")
	defer cancelOther()
	chTx, cancelTx := bus.Subscribe(domain.KindTransaction, "req-1")
	defer cancelTx()

	// Совпасть должна только пара (kind, id)
	bus.Publish(domain.Decision{RequestID: "req-1", Kind: domain.KindPermission, Approved: true})

	select {
	case <-chPerm:
	case <-time.After(time.Second):
		t.Fatal("matching subscriber did not receive the decision")
	}

	select {
	case d := <-chOther:
		t.Fatalf("foreign id woke up: %+v", d)
	case d := <-chTx:
		t.Fatalf("foreign kind woke up: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscriptionIsOneShot(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(domain.KindPermission, "req-1")
	defer cancel()

	bus.Publish(domain.Decision{RequestID: "req-1", Kind: domain.KindPermission, Approved: false})
	// Второе решение по тому же id отбрасывается: подписчик уже снят
	bus.Publish(domain.Decision{RequestID: "req-1", Kind: domain.KindPermission, Approved: true})

	d := <-ch
	assert.False(t, d.Approved)

	select {
	case d := <-ch:
		t.Fatalf("second delivery to a one-shot subscription: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PublishWithoutSubscriberIsDropped(t *testing.T) {
	bus := NewBus(zap.NewNop())
	// Паники и блокировки быть не должно
	bus.Publish(domain.Decision{RequestID: "ghost", Kind: domain.KindSignMessage, Approved: true})
}

func TestBus_CancelRemovesSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(domain.KindTransaction, "req-1")
	cancel()

	bus.Publish(domain.Decision{RequestID: "req-1", Kind: domain.KindTransaction, Approved: true})

	select {
	case d, ok := <-ch:
		require.False(t, ok, "cancelled subscriber received a decision: %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_CloseReleasesSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	ch, cancel := bus.Subscribe(domain.KindPermission, "req-1")
	defer cancel()

	bus.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("subscriber was not released on close")
	}
}
