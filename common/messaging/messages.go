package messaging

import "fmt"

// Subjects are rooted at the configured prefix ("catalog" by default)
const (
	subjectEvents  = "events"
	subjectSyncRun = "sync.run"
)

// EventStreamName is the JetStream stream keeping mirrored change events
const EventStreamName = "CATALOG_EVENTS"

// EventSubject is the subject a change event of kind is mirrored to
func EventSubject(prefix, kind string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectEvents, kind)
}

// SyncRunSubject receives requests for an immediate sync cycle
func SyncRunSubject(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, subjectSyncRun)
}

// SyncRunReply answers a request on SyncRunSubject
type SyncRunReply struct {
	// Queued is false when a cycle request was already pending
	Queued bool `json:"queued"`
}
