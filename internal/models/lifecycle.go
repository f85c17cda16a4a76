package models

// AgentState is the lifecycle state of the interception agent
type AgentState string

const (
	AgentStateUnregistered     AgentState = "unregistered"
	AgentStateInstalling       AgentState = "installing"
	AgentStateInstalledWaiting AgentState = "installed-waiting"
	AgentStateActive           AgentState = "active"
	AgentStateUpdating         AgentState = "updating"
)

// MessageType identifies a control message sent to the agent
type MessageType string

const (
	MessageCleanCache  MessageType = "CLEAN_CACHE"
	MessageSkipWaiting MessageType = "SKIP_WAITING"
	MessageForceSync   MessageType = "FORCE_SYNC"
)

// Message is a control message from the page side to the agent
type Message struct {
	Type MessageType `json:"type"`
}

// NotificationType identifies an informational message emitted by the agent
type NotificationType string

const (
	NotificationCacheUpdated    NotificationType = "CACHE_UPDATED"
	NotificationOfflineFallback NotificationType = "OFFLINE_FALLBACK"
)

// Notification is an informational message from the agent to pages
type Notification struct {
	Type NotificationType `json:"type"`
	URL  string           `json:"url,omitempty"`
}

// StateChange is published whenever an agent version changes state
type StateChange struct {
	Version       string     `json:"version"`
	State         AgentState `json:"state"`
	ActiveVersion string     `json:"active_version,omitempty"`
}
