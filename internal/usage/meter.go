// Package usage records AI usage against a caller's account.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/httpclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/retry"
)

// Request identifies who consumed one unit and why.
type Request struct {
	AccountID     string `json:"accountId"`
	UserID        string `json:"userId"`
	SiteID        string `json:"siteId"`
	OperationKind string `json:"operationKind"`
	Description   string `json:"description"`
}

// Result is the metering service's answer.
type Result struct {
	Success   bool `json:"success"`
	TotalUsed int  `json:"totalUsed"`
}

// Meter posts usage records. A Meter without an endpoint records nothing.
type Meter struct {
	client        *httpclient.Client
	endpoint      string
	operationKind string
	retry         retry.Config
	log           logger.Logger
}

// NewMeter creates a meter. operationKind fills requests that leave it empty.
func NewMeter(client *httpclient.Client, endpoint, operationKind string, log logger.Logger) *Meter {
	return &Meter{
		client:        client,
		endpoint:      endpoint,
		operationKind: operationKind,
		retry:         retry.DefaultConfig(),
		log:           log,
	}
}

// Record posts one usage unit. 5xx responses and network errors are retried.
func (m *Meter) Record(ctx context.Context, req Request) (Result, error) {
	if m == nil || m.endpoint == "" {
		return Result{}, nil
	}
	if req.OperationKind == "" {
		req.OperationKind = m.operationKind
	}

	var result Result
	err := retry.Do(ctx, m.retry, func(ctx context.Context) error {
		resp, err := m.client.PostJSON(ctx, m.endpoint, req, nil)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.Transient(fmt.Errorf("usage service returned %d", resp.StatusCode))
		}
		if !resp.OK() {
			return fmt.Errorf("usage service returned %d", resp.StatusCode)
		}
		if decodeErr := json.Unmarshal(resp.Body, &result); decodeErr != nil {
			return fmt.Errorf("decode usage response: %w", decodeErr)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("record usage: %w", err)
	}

	m.log.Debug("Usage recorded",
		logger.String("site_id", req.SiteID),
		logger.String("operation", req.OperationKind),
		logger.Int("total_used", result.TotalUsed),
	)
	return result, nil
}
