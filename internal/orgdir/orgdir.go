// Package orgdir resolves organisation ids against the organisation service.
package orgdir

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/collaborator"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

const Name = "org-directory"

const readPath = "/v1/org/read"

type readRequest struct {
	Request struct {
		OrganisationID string `json:"organisationId"`
	} `json:"request"`
}

type readResponse struct {
	Result struct {
		Response *domain.Organisation `json:"response"`
	} `json:"result"`
}

type HTTPDirectory struct {
	client *collaborator.Client
}

func New(client *collaborator.Client) (*HTTPDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("collaborator client is required")
	}
	return &HTTPDirectory{client: client}, nil
}

// GetOrganisationByID returns nil, nil for an unknown organisation, and for
// an answer that names a different organisation than the one asked for.
func (d *HTTPDirectory) GetOrganisationByID(ctx context.Context, orgID string) (*domain.Organisation, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, domain.MissingField("organisationId")
	}

	var body readRequest
	body.Request.OrganisationID = orgID
	var out readResponse

	newRequest := func() *resty.Request {
		return d.client.R(ctx).SetBody(body).SetResult(&out)
	}

	_, err := d.client.Read(ctx, newRequest, http.MethodPost, readPath)
	if collaborator.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	org := out.Result.Response
	if org == nil || org.ID != orgID {
		return nil, nil
	}
	return org, nil
}
