// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"encoding/json"
	"fmt"
)

// EventKindMergeRequest is the only webhook object kind this service acts on.
const EventKindMergeRequest = "merge_request"

// Merge request actions delivered by GitLab webhooks.
const (
	ActionOpen   = "open"
	ActionUpdate = "update"
	ActionClose  = "close"
	ActionReopen = "reopen"
	ActionMerge  = "merge"
)

// MergeRequestEvent is a simplified, internal view of a GitLab merge request
// webhook event. Only the fields the review workflow needs survive the parse.
type MergeRequestEvent struct {
	ProjectID       int
	MergeRequestIID int
	Action          string
	ProjectPath     string

	// ReviewerIDs is the union of object_attributes.reviewer_ids and the ids
	// of the reviewers object list; GitLab populates either depending on the
	// instance version.
	ReviewerIDs []int
}

// mergeRequestPayload mirrors the subset of the GitLab webhook JSON we consume.
type mergeRequestPayload struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		TargetProjectID int    `json:"target_project_id"`
		IID             int    `json:"iid"`
		Action          string `json:"action"`
		ReviewerIDs     []int  `json:"reviewer_ids"`
	} `json:"object_attributes"`
	Reviewers []struct {
		ID int `json:"id"`
	} `json:"reviewers"`
}

// EventFromMergeRequestPayload transforms a raw GitLab webhook body into the
// application's internal MergeRequestEvent representation. It acts as an
// anti-corruption layer: the payload shape is validated once here, so the rest
// of the pipeline never touches untyped JSON.
func EventFromMergeRequestPayload(body []byte) (*MergeRequestEvent, error) {
	var payload mergeRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("could not decode webhook payload: %w", err)
	}

	if payload.ObjectKind != EventKindMergeRequest {
		return nil, fmt.Errorf("event kind %q is not a merge request event", payload.ObjectKind)
	}

	attrs := payload.ObjectAttributes
	if attrs.TargetProjectID <= 0 {
		return nil, fmt.Errorf("target project id is missing from the event")
	}
	if attrs.IID <= 0 {
		return nil, fmt.Errorf("merge request iid is missing from the event")
	}
	if attrs.Action == "" {
		return nil, fmt.Errorf("merge request action is missing from the event")
	}

	reviewerIDs := make([]int, 0, len(attrs.ReviewerIDs)+len(payload.Reviewers))
	reviewerIDs = append(reviewerIDs, attrs.ReviewerIDs...)
	for _, r := range payload.Reviewers {
		if r.ID > 0 {
			reviewerIDs = append(reviewerIDs, r.ID)
		}
	}

	return &MergeRequestEvent{
		ProjectID:       attrs.TargetProjectID,
		MergeRequestIID: attrs.IID,
		Action:          attrs.Action,
		ProjectPath:     payload.Project.PathWithNamespace,
		ReviewerIDs:     reviewerIDs,
	}, nil
}

// HasReviewer reports whether the given user id appears in the event's
// reviewer list.
func (e *MergeRequestEvent) HasReviewer(userID int) bool {
	for _, id := range e.ReviewerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TriggersReview reports whether the event action should start a review.
// Close and merge actions are acknowledged but never reviewed.
func (e *MergeRequestEvent) TriggersReview() bool {
	switch e.Action {
	case ActionOpen, ActionUpdate, ActionReopen:
		return true
	default:
		return false
	}
}
