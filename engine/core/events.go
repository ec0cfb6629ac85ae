package core

import (
	"fmt"
	"sync"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Resized/resolution changed from the OS.
	EVENT_CODE_RESIZED SystemEventCode = 0x03

	// A compiled shader binary changed on disk.
	EVENT_CODE_SHADERS_RELOADED SystemEventCode = 0x04

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyEvent struct {
	KeyCode int
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	registered map[SystemEventCode][]FnOnEvent
}

var onceEvents sync.Once
var eventState *eventSystemState

func EventSystemInitialize() bool {
	onceEvents.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[SystemEventCode][]FnOnEvent),
		}
	})
	return eventState != nil
}

func EventSystemShutdown() error {
	if eventState == nil {
		return fmt.Errorf("event system shut down before initialization")
	}
	eventState.registered = make(map[SystemEventCode][]FnOnEvent)
	return nil
}

func EventRegister(code SystemEventCode, callback FnOnEvent) bool {
	if eventState == nil {
		return false
	}
	eventState.registered[code] = append(eventState.registered[code], callback)
	return true
}

// EventFire dispatches synchronously, on the caller's goroutine. The engine
// loop is cooperative and single-threaded, so listeners always run between
// frames, never during one.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	listeners, ok := eventState.registered[context.Type]
	if !ok {
		return false
	}
	for _, callback := range listeners {
		callback(context)
	}
	return true
}
