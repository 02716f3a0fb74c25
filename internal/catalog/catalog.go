// Package catalog talks to the content service that owns activity metadata
// and the per-activity batch summaries.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/collaborator"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

const Name = "content-catalog"

const (
	readPath   = "/content/v3/read/"
	updatePath = "/system/v3/content/update/"
)

type readResponse struct {
	Result struct {
		Content *domain.ActivityContent `json:"content"`
	} `json:"result"`
}

type updateRequest struct {
	Request struct {
		Content struct {
			Batches []domain.BatchSummary `json:"batches"`
		} `json:"content"`
	} `json:"request"`
}

type HTTPCatalog struct {
	client *collaborator.Client
}

func New(client *collaborator.Client) (*HTTPCatalog, error) {
	if client == nil {
		return nil, fmt.Errorf("collaborator client is required")
	}
	return &HTTPCatalog{client: client}, nil
}

// GetContent returns nil, nil when the catalog has no such activity.
func (c *HTTPCatalog) GetContent(ctx context.Context, activityID string, fields []string) (*domain.ActivityContent, error) {
	if strings.TrimSpace(activityID) == "" {
		return nil, domain.MissingField("activityId")
	}

	var out readResponse
	newRequest := func() *resty.Request {
		req := c.client.R(ctx).SetResult(&out)
		if len(fields) > 0 {
			req.SetQueryParam("fields", strings.Join(fields, ","))
		}
		return req
	}

	_, err := c.client.Read(ctx, newRequest, http.MethodGet, readPath+url.PathEscape(activityID))
	if collaborator.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Result.Content, nil
}

// UpdateCollection replaces the catalog's batch list for activityID.
func (c *HTTPCatalog) UpdateCollection(ctx context.Context, activityID string, batches []domain.BatchSummary) error {
	if strings.TrimSpace(activityID) == "" {
		return domain.MissingField("activityId")
	}
	if batches == nil {
		batches = []domain.BatchSummary{}
	}

	var body updateRequest
	body.Request.Content.Batches = batches

	_, err := c.client.Execute(ctx, c.client.R(ctx).SetBody(body), http.MethodPatch, updatePath+url.PathEscape(activityID))
	return err
}
