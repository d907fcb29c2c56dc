package osm

import (
	"sync"
	"time"
)

// MonitoringHooks receives callbacks around every request made by DoRequest
type MonitoringHooks struct {
	// OnRequest is called before the request is sent
	OnRequest func(service, operation string)
	// OnResponse is called once the request completes
	OnResponse func(service, operation string, duration time.Duration, success bool)
	// OnRateLimit is called after waiting on the service limiter
	OnRateLimit func(service string, waitTime time.Duration)
	// OnError is called when the request could not be sent
	OnError func(service, errorType string)
}

var (
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks; nil disables them
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

// The helpers below are nil-safe on both the receiver and the individual callbacks.

func (h *MonitoringHooks) request(service, operation string) {
	if h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func (h *MonitoringHooks) response(service, operation string, d time.Duration, success bool) {
	if h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func (h *MonitoringHooks) rateLimit(service string, wait time.Duration) {
	if h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func (h *MonitoringHooks) fail(service, errorType string) {
	if h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}
