package surface

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

func newTestController() *Controller {
	// rdb нужен только Listen-у; Open/NotifyClosed живут без него
	return NewController(nil, "http://localhost:8000/approve", zap.NewNop())
}

func TestSurface_URLCarriesRequestID(t *testing.T) {
	c := newTestController()
	req := &domain.PendingRequest{ID: "req-42", Kind: domain.KindPermission}

	s := c.Open("connect", req)

	assert.True(t, strings.HasPrefix(s.URL(), "http://localhost:8000/approve/connect?"))
	assert.Contains(t, s.URL(), "reqId=req-42")
}

func TestSurface_CloseFiresExactlyOnce(t *testing.T) {
	c := newTestController()
	s := c.Open("connect", &domain.PendingRequest{ID: "req-1"})

	closeCh := s.Show()
	s.Close()
	// Повторные закрытия — no-op, не паника
	s.Close()
	s.Close()

	select {
	case <-closeCh:
	case <-time.After(time.Second):
		t.Fatal("close event did not fire")
	}
	// Канал закрыт: повторное чтение не блокируется
	select {
	case <-closeCh:
	case <-time.After(time.Second):
		t.Fatal("close channel must stay closed")
	}
}

func TestController_NotifyClosedDeliversCloseEvent(t *testing.T) {
	c := newTestController()
	s := c.Open("sign-msg", &domain.PendingRequest{ID: "req-7"})

	closeCh := s.Show()
	c.NotifyClosed("req-7")

	select {
	case <-closeCh:
	case <-time.After(time.Second):
		t.Fatal("external close was not delivered")
	}
}

func TestController_NotifyClosedUnknownIDIsNoop(t *testing.T) {
	c := newTestController()
	// Окно уже закрыто или не существовало — молча игнорируем
	c.NotifyClosed("ghost")
}

func TestController_CloseAfterNotifyIsNoop(t *testing.T) {
	c := newTestController()
	s := c.Open("tx-approval", &domain.PendingRequest{ID: "req-9"})

	c.NotifyClosed("req-9")
	// Брокер безусловно зовет Close() после гонки — событие уже было
	s.Close()

	select {
	case <-s.Show():
	case <-time.After(time.Second):
		t.Fatal("close event lost")
	}
}
