package services

import (
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
)

// ChangeNotifier fans committed changes out to SSE subscribers and the
// search reindex queue. A nil notifier drops everything.
type ChangeNotifier struct {
	hub   *SSEHub
	queue TaskQueue
}

func NewChangeNotifier(hub *SSEHub, queue TaskQueue) *ChangeNotifier {
	return &ChangeNotifier{hub: hub, queue: queue}
}

// StageChanged publishes event and schedules a reindex of the touched
// profiles. Call it only after the transaction committed.
func (n *ChangeNotifier) StageChanged(event StageEvent, profileIDs []string) {
	if n == nil {
		return
	}
	if n.hub != nil {
		n.hub.Publish(event)
	}
	if n.queue == nil || len(profileIDs) == 0 {
		return
	}
	if err := n.queue.Enqueue(&ReindexTask{ProfileIDs: profileIDs, Cause: event.Type}); err != nil {
		logger.Warn().Err(err).
			Str("event", event.Type).
			Str("project_id", event.ProjectID).
			Msg("Failed to enqueue profile reindex")
	}
}
