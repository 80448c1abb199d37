// Copyright 2026 The Redscope Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Typed wrappers over the authorized request path for the endpoints the
// CLI surfaces. All of them ride Do, so bearer attachment and token
// refresh apply uniformly.

// Engagement is a penetration-testing engagement record.
type Engagement struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ClientName string     `json:"client_name"`
	Status     string     `json:"status"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// WorkflowExecution is a workflow run triggered against an engagement.
type WorkflowExecution struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	EngagementID string    `json:"engagement_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
}

// ExecuteWorkflowRequest asks the server to run a workflow.
type ExecuteWorkflowRequest struct {
	WorkflowID   string `json:"workflow_id"`
	EngagementID string `json:"engagement_id"`
}

// ListEngagements returns the engagements visible to the current user.
func (c *Client) ListEngagements(ctx context.Context) ([]Engagement, error) {
	var out []Engagement
	if err := c.Do(ctx, http.MethodGet, "/engagements", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list engagements: %w", err)
	}
	return out, nil
}

// CreateEngagementRequest holds the fields for a new engagement.
type CreateEngagementRequest struct {
	Name       string `json:"name"`
	ClientName string `json:"client_name"`
}

// CreateEngagement creates an engagement in the planning phase.
func (c *Client) CreateEngagement(ctx context.Context, req CreateEngagementRequest) (*Engagement, error) {
	var out Engagement
	if err := c.Do(ctx, http.MethodPost, "/engagements", req, &out); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	return &out, nil
}

// GetEngagement returns one engagement by ID.
func (c *Client) GetEngagement(ctx context.Context, id string) (*Engagement, error) {
	var out Engagement
	if err := c.Do(ctx, http.MethodGet, "/engagements/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}
	return &out, nil
}

// StartEngagement moves an engagement into its active phase.
func (c *Client) StartEngagement(ctx context.Context, id string) (*Engagement, error) {
	var out Engagement
	if err := c.Do(ctx, http.MethodPost, "/engagements/"+id+"/start", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to start engagement: %w", err)
	}
	return &out, nil
}

// CompleteEngagement closes out an engagement.
func (c *Client) CompleteEngagement(ctx context.Context, id string) (*Engagement, error) {
	var out Engagement
	if err := c.Do(ctx, http.MethodPost, "/engagements/"+id+"/complete", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to complete engagement: %w", err)
	}
	return &out, nil
}

// ExecuteWorkflow starts a workflow run.
func (c *Client) ExecuteWorkflow(ctx context.Context, req ExecuteWorkflowRequest) (*WorkflowExecution, error) {
	var out WorkflowExecution
	if err := c.Do(ctx, http.MethodPost, "/workflows/execute", req, &out); err != nil {
		return nil, fmt.Errorf("failed to execute workflow: %w", err)
	}
	return &out, nil
}

// GetExecution returns a workflow run by ID.
func (c *Client) GetExecution(ctx context.Context, id string) (*WorkflowExecution, error) {
	var out WorkflowExecution
	if err := c.Do(ctx, http.MethodGet, "/workflows/executions/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}
	return &out, nil
}
