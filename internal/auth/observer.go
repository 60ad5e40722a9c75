package auth

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/information-sharing-networks/authcore/internal/protocol"
)

// Observer receives the outcome of each flow. Each call to an AuthService operation produces exactly one
// callback. Callbacks run on the caller's goroutine after the operation completes.
type Observer interface {
	OnLoginSuccess(payload *protocol.LoginPayload)
	OnLoginFailure(message string)
	OnLogoutSuccess()
	OnLogoutFailure(message string)
	OnVersionCheckSuccess(payload *protocol.LoginPayload)
	OnVersionCheckFailure(message string)
}

type observerSlot struct {
	mutex    sync.RWMutex
	observer Observer
}

func (s *observerSlot) set(o Observer) {
	s.mutex.Lock()
	s.observer = o
	s.mutex.Unlock()
}

// notify calls fn with the current observer, outside the lock so a callback may call SetObserver.
func (s *observerSlot) notify(fn func(Observer)) {
	s.mutex.RLock()
	o := s.observer
	s.mutex.RUnlock()
	if o != nil {
		fn(o)
	}
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	LoginSuccess        func(*protocol.LoginPayload)
	LoginFailure        func(string)
	LogoutSuccess       func()
	LogoutFailure       func(string)
	VersionCheckSuccess func(*protocol.LoginPayload)
	VersionCheckFailure func(string)
}

func (f ObserverFuncs) OnLoginSuccess(p *protocol.LoginPayload) {
	if f.LoginSuccess != nil {
		f.LoginSuccess(p)
	}
}

func (f ObserverFuncs) OnLoginFailure(msg string) {
	if f.LoginFailure != nil {
		f.LoginFailure(msg)
	}
}

func (f ObserverFuncs) OnLogoutSuccess() {
	if f.LogoutSuccess != nil {
		f.LogoutSuccess()
	}
}

func (f ObserverFuncs) OnLogoutFailure(msg string) {
	if f.LogoutFailure != nil {
		f.LogoutFailure(msg)
	}
}

func (f ObserverFuncs) OnVersionCheckSuccess(p *protocol.LoginPayload) {
	if f.VersionCheckSuccess != nil {
		f.VersionCheckSuccess(p)
	}
}

func (f ObserverFuncs) OnVersionCheckFailure(msg string) {
	if f.VersionCheckFailure != nil {
		f.VersionCheckFailure(msg)
	}
}

// event bus topics published by BusObserver
const (
	TopicLoginSuccess        = "auth:login:success"
	TopicLoginFailure        = "auth:login:failure"
	TopicLogoutSuccess       = "auth:logout:success"
	TopicLogoutFailure       = "auth:logout:failure"
	TopicVersionCheckSuccess = "auth:version:success"
	TopicVersionCheckFailure = "auth:version:failure"
)

// BusObserver republishes outcomes on an event bus so that several components can subscribe.
// Success topics carry the *protocol.LoginPayload (none for logout), failure topics the message.
type BusObserver struct {
	bus evbus.Bus
}

func NewBusObserver(bus evbus.Bus) *BusObserver {
	return &BusObserver{bus: bus}
}

func (b *BusObserver) OnLoginSuccess(p *protocol.LoginPayload) {
	b.bus.Publish(TopicLoginSuccess, p)
}

func (b *BusObserver) OnLoginFailure(msg string) {
	b.bus.Publish(TopicLoginFailure, msg)
}

func (b *BusObserver) OnLogoutSuccess() {
	b.bus.Publish(TopicLogoutSuccess)
}

func (b *BusObserver) OnLogoutFailure(msg string) {
	b.bus.Publish(TopicLogoutFailure, msg)
}

func (b *BusObserver) OnVersionCheckSuccess(p *protocol.LoginPayload) {
	b.bus.Publish(TopicVersionCheckSuccess, p)
}

func (b *BusObserver) OnVersionCheckFailure(msg string) {
	b.bus.Publish(TopicVersionCheckFailure, msg)
}
