// Package provider defines the contract with the external managed
// data-sharing primitive. Every operation is idempotent by resource name:
// a get distinguishes "absent" (ErrNotFound) from a hard failure, so
// callers can implement get-or-create without parsing error text.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/nodemesh/datashare/models"
)

var (
	// ErrNotFound is returned when a named resource does not exist.
	ErrNotFound = errors.New("provider: resource not found")

	// ErrConflict is returned when an operation collides with one already
	// in flight, e.g. launching a synchronization that is running.
	ErrConflict = errors.New("provider: operation already in progress")
)

// ShareKindCopyBased is the only share kind the workflow creates.
const ShareKindCopyBased = "CopyBased"

// Share is a provider-side grouping of dataset mappings offered to a
// consumer.
type Share struct {
	Name        string
	Description string
	Terms       string
	Kind        string
}

// DataSet attaches a concrete blob location to a share on the provider
// side.
type DataSet struct {
	Name               string
	DataSetID          string
	ResourceGroupName  string
	StorageAccountName string
	ContainerName      string
	FilePath           string
}

// Invitation grants a tenant/identity pair the right to subscribe to a
// share. InvitationID is assigned by the provider on create.
type Invitation struct {
	Name           string
	InvitationID   string
	ShareName      string
	TargetTenantID string
	TargetIdentity string
	Status         models.Status
	SentAt         time.Time
}

// Subscription is the consumer-side acceptance of an invitation.
type Subscription struct {
	Name         string
	InvitationID string
}

// SourceDataSet describes a dataset offered through a subscription, as
// seen from the consumer side.
type SourceDataSet struct {
	DataSetID   string
	DataSetName string
}

// DataSetMapping binds a subscription's source dataset to a destination
// blob location on the consumer side.
type DataSetMapping struct {
	Name               string
	DataSetID          string
	ResourceGroupName  string
	StorageAccountName string
	ContainerName      string
	FilePath           string
}

// Synchronization is one run of copying data from the provider dataset to
// the consumer destination. Message is non-empty when the run reported a
// problem; End is zero while the run is still open.
type Synchronization struct {
	Status     models.Status
	Start      time.Time
	End        time.Time
	DurationMS int64
	Message    string
}

// Client is the sharing primitive the engines drive. Implementations must
// return ErrNotFound for absent resources and ErrConflict for an
// already-running synchronization; any other error is a hard failure.
type Client interface {
	// Provider side.
	GetShare(ctx context.Context, name string) (*Share, error)
	CreateShare(ctx context.Context, share Share) (*Share, error)
	GetDataSet(ctx context.Context, shareName, name string) (*DataSet, error)
	CreateDataSet(ctx context.Context, shareName string, ds DataSet) (*DataSet, error)
	GetInvitation(ctx context.Context, shareName, name string) (*Invitation, error)
	CreateInvitation(ctx context.Context, inv Invitation) (*Invitation, error)

	// Consumer side.
	ListReceivedInvitations(ctx context.Context) ([]Invitation, error)
	GetSubscription(ctx context.Context, name string) (*Subscription, error)
	CreateSubscription(ctx context.Context, sub Subscription) (*Subscription, error)
	DeleteSubscription(ctx context.Context, name string) error
	ListSourceDataSets(ctx context.Context, subscriptionName string) ([]SourceDataSet, error)
	GetDataSetMapping(ctx context.Context, subscriptionName, name string) (*DataSetMapping, error)
	CreateDataSetMapping(ctx context.Context, subscriptionName string, m DataSetMapping) (*DataSetMapping, error)
	Synchronize(ctx context.Context, subscriptionName string) error
	GetSynchronization(ctx context.Context, subscriptionName string) (*Synchronization, error)
}
