// Package naming derives the deterministic, length-bounded resource names
// used as keys on the external sharing provider. Same inputs always yield
// the same names; names are cut at MaxNameLength to satisfy the provider's
// naming limits. The left-to-right cut is a documented collision risk for
// very long tenant/identity values and is deliberately not solved here.
package naming

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/nodemesh/datashare/models"
)

// MaxNameLength is the provider's limit on resource names.
const MaxNameLength = 90

// ShareNames are the provider-side resource names for one share workflow.
type ShareNames struct {
	Share      string
	DataSet    string
	Invitation string
}

// ConsumeNames are the consumer-side resource names for one consume
// workflow. Subscription doubles as the synchronization key.
type ConsumeNames struct {
	Subscription string
	Mapping      string
}

// DatasetHash returns the stable hex digest of the five dataset fields,
// joined with dashes. It is the only part of the derived names that
// reflects the dataset location.
func DatasetHash(d models.Dataset) string {
	text := fmt.Sprintf("%s-%s-%s-%s-%s",
		d.ResourceGroupName,
		d.StorageAccountName,
		d.ContainerName,
		d.FolderPath,
		d.FileName,
	)
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ForShare derives the provider-side names from the workflow tuple and the
// consumer's tenant/identity.
func ForShare(providerNodeID, consumerNodeID, datasetHash, tenantID, identity string) ShareNames {
	shareID := fmt.Sprintf("%s-%s-%s", providerNodeID, consumerNodeID, datasetHash)
	return ShareNames{
		Share:      truncate(fmt.Sprintf("share-%s-%s-%s", shareID, tenantID, identity)),
		DataSet:    truncate(fmt.Sprintf("datashare-%s-%s-%s", shareID, tenantID, identity)),
		Invitation: truncate(fmt.Sprintf("invitation-%s-%s-%s", shareID, tenantID, identity)),
	}
}

// ForConsume derives the consumer-side names. The invitation id takes the
// place of tenant/identity so one invitation maps to one subscription.
func ForConsume(providerNodeID, consumerNodeID, datasetHash, invitationID string) ConsumeNames {
	shareID := fmt.Sprintf("%s-%s-%s", providerNodeID, consumerNodeID, datasetHash)
	return ConsumeNames{
		Subscription: truncate(fmt.Sprintf("consume-%s-%s", shareID, invitationID)),
		Mapping:      truncate(fmt.Sprintf("datashare-%s-%s", shareID, invitationID)),
	}
}

func truncate(s string) string {
	if len(s) > MaxNameLength {
		return s[:MaxNameLength]
	}
	return s
}
