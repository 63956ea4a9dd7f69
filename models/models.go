package models

import "time"

// NodeStatus is the registry-side liveness state of a share node.
type NodeStatus string

const (
	NodeOnline  NodeStatus = "online"
	NodeOffline NodeStatus = "offline"
	NodeError   NodeStatus = "error"
	NodeUnknown NodeStatus = "unknown"
)

// ShareNode is the registration payload a node posts to the registry.
type ShareNode struct {
	NodeID   string `json:"node_id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
	Identity string `json:"identity"`
}

// ShareNodeInformation is the full registry record. It is never deleted;
// the liveness sweep only flips Status between online and offline.
type ShareNodeInformation struct {
	NodeID             string     `json:"node_id"`
	URL                string     `json:"url"`
	Name               string     `json:"name"`
	TenantID           string     `json:"tenant_id"`
	Identity           string     `json:"identity"`
	Status             NodeStatus `json:"status"`
	LatestRegistration time.Time  `json:"latest_registration"`
}

// Node is the public projection of a registry record returned to callers.
type Node struct {
	NodeID   string `json:"node_id"`
	TenantID string `json:"tenant_id"`
	Identity string `json:"identity"`
}

// Dataset identifies a blob-like object. It is used both as the share
// source and as the consume destination.
type Dataset struct {
	ResourceGroupName  string `json:"resource_group_name"`
	StorageAccountName string `json:"storage_account_name"`
	ContainerName      string `json:"container_name"`
	FolderPath         string `json:"folder_path"`
	FileName           string `json:"file_name"`
}

// ShareRequest triggers the sharing workflow from provider to consumer.
type ShareRequest struct {
	ProviderNodeID string  `json:"provider_node_id"`
	ConsumerNodeID string  `json:"consumer_node_id"`
	Dataset        Dataset `json:"dataset"`
}

// ConsumeRequest identifies an invitation to consume on the consumer node.
type ConsumeRequest struct {
	ProviderNodeID string `json:"provider_node_id"`
	ConsumerNodeID string `json:"consumer_node_id"`
	InvitationID   string `json:"invitation_id"`
}

// Status is the lifecycle state reported for invitations and
// synchronization runs. The string values are the provider's own.
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusPending    Status = "Pending"
	StatusQueued     Status = "Queued"
	StatusFailed     Status = "Failed"
	StatusSucceeded  Status = "Succeeded"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusSucceeded
}

// Error codes embedded in responses and HTTP error details. Zero means
// no error occurred; anything else carries a message explaining it.
const (
	CodeNoError                  = 0
	CodeSharingDatasetError      = 1
	CodeSharingDatasetException  = 2
	CodeConsumingDatasetError    = 3
	CodeConsumingDatasetExcepted = 4
	CodeSynchronizationError     = 5
)

// Error is the structured failure block carried by responses and HTTP
// error bodies. Code is either one of the Code* values above or, in HTTP
// error details, the HTTP status itself.
type Error struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Source  string    `json:"source"`
	Date    time.Time `json:"date"`
}

// StatusDetails is the observation window for a workflow step. For
// non-terminal states Start == End (the window is still open).
type StatusDetails struct {
	Status   Status    `json:"status"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int64     `json:"duration"`
}

// ShareResponse is the immutable snapshot returned by share and
// share-status operations.
type ShareResponse struct {
	InvitationID   string        `json:"invitation_id"`
	InvitationName string        `json:"invitation_name"`
	ProviderNodeID string        `json:"provider_node_id"`
	ConsumerNodeID string        `json:"consumer_node_id"`
	Dataset        Dataset       `json:"dataset"`
	Status         StatusDetails `json:"status"`
	Error          Error         `json:"error"`
}

// ConsumeResponse is the immutable snapshot returned by consume
// operations.
type ConsumeResponse struct {
	InvitationID   string        `json:"invitation_id"`
	ProviderNodeID string        `json:"provider_node_id"`
	ConsumerNodeID string        `json:"consumer_node_id"`
	Dataset        Dataset       `json:"dataset"`
	Status         StatusDetails `json:"status"`
	Error          Error         `json:"error"`
}
