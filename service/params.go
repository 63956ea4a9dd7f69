package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nodemesh/datashare/models"
)

func decodeJSONBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func consumeRequestFromQuery(r *http.Request) (models.ConsumeRequest, bool) {
	q := r.URL.Query()
	req := models.ConsumeRequest{
		ProviderNodeID: q.Get("provider_node_id"),
		ConsumerNodeID: q.Get("consumer_node_id"),
		InvitationID:   q.Get("invitation_id"),
	}
	ok := req.ProviderNodeID != "" && req.ConsumerNodeID != "" && req.InvitationID != ""
	return req, ok
}

func shareRequestFromQuery(r *http.Request) (models.ShareRequest, bool) {
	q := r.URL.Query()
	req := models.ShareRequest{
		ProviderNodeID: q.Get("provider_node_id"),
		ConsumerNodeID: q.Get("consumer_node_id"),
		Dataset: models.Dataset{
			ResourceGroupName:  q.Get("resource_group_name"),
			StorageAccountName: q.Get("storage_account_name"),
			ContainerName:      q.Get("container_name"),
			FolderPath:         q.Get("folder_path"),
			FileName:           q.Get("file_name"),
		},
	}
	ok := req.ProviderNodeID != "" && req.ConsumerNodeID != ""
	return req, ok
}
