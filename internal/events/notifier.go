package events

// Live update event names pushed to dashboard observers.
const (
	LiveNewVisit          = "new_visit"
	LiveNewClick          = "new_click"
	LiveNewConversion     = "new_conversion"
	LiveConsentUpdate     = "consent_update"
	LivePageExit          = "page_exit"
	LiveHeatmapUpdate     = "heatmap_update"
	LiveActiveUsersUpdate = "active_users_update"
)

// Notifier receives best-effort live notifications after a committed write.
// Implementations must never block; failures are invisible to the caller.
type Notifier interface {
	Publish(event string, data map[string]any)
}

// notify is nil-safe so the pipeline can run without a live channel (tests,
// CLI tooling).
func notify(n Notifier, event string, data map[string]any) {
	if n == nil {
		return
	}
	n.Publish(event, data)
}
