package core

import (
	"sync"

	"github.com/google/uuid"
)

var onceSession sync.Once
var sessionID string

// SessionID returns a stable identifier for this process run. It is stamped
// into startup logs so crash reports from overlapping runs can be told apart.
func SessionID() string {
	onceSession.Do(func() {
		sessionID = uuid.NewString()
	})
	return sessionID
}
