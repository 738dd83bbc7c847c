// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"context"
	"sort"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/pkg/types"
)

// PutBrainstorm stores a new brainstorm record, assigning its id and
// timestamp. Existing records are never replaced.
func (s *Store) PutBrainstorm(ctx context.Context, b types.Brainstorm) (types.Brainstorm, error) {
	const op = "project.PutBrainstorm"
	e, err := s.live(op, b.ProjectID)
	if err != nil {
		return types.Brainstorm{}, err
	}
	defer e.mu.Unlock()

	b.ID = newID("bst")
	b.CreatedAt = s.now()
	b.Ideas = append([]string{}, b.Ideas...)
	if s.persist != nil {
		if err := s.persist.SaveBrainstorm(ctx, b); err != nil {
			return types.Brainstorm{}, persistErr(op, err)
		}
	}
	e.brainstorms[b.ID] = b
	return b, nil
}

// GetBrainstorm returns a brainstorm that belongs to projectID. A brainstorm
// owned by a different project is reported as not found.
func (s *Store) GetBrainstorm(_ context.Context, projectID, brainstormID string) (types.Brainstorm, error) {
	const op = "project.GetBrainstorm"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return types.Brainstorm{}, err
	}
	defer e.mu.RUnlock()

	b, ok := e.brainstorms[brainstormID]
	if !ok {
		return types.Brainstorm{}, apperr.NotFound(op, "brainstorm %s not found in project %s", brainstormID, projectID)
	}
	b.Ideas = append([]string{}, b.Ideas...)
	return b, nil
}

// ListBrainstorms returns the project's brainstorms, oldest first.
func (s *Store) ListBrainstorms(_ context.Context, projectID string) ([]types.Brainstorm, error) {
	e, err := s.liveRead("project.ListBrainstorms", projectID)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	out := make([]types.Brainstorm, 0, len(e.brainstorms))
	for _, b := range e.brainstorms {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PutContent stores a new generated content record. The referenced
// brainstorm must exist in the same project.
func (s *Store) PutContent(ctx context.Context, c types.GeneratedContent) (types.GeneratedContent, error) {
	const op = "project.PutContent"
	e, err := s.live(op, c.ProjectID)
	if err != nil {
		return types.GeneratedContent{}, err
	}
	defer e.mu.Unlock()

	if _, ok := e.brainstorms[c.BrainstormID]; !ok {
		return types.GeneratedContent{}, apperr.NotFound(op, "brainstorm %s not found in project %s", c.BrainstormID, c.ProjectID)
	}

	c.ID = newID("gen")
	c.CreatedAt = s.now()
	if s.persist != nil {
		if err := s.persist.SaveContent(ctx, c); err != nil {
			return types.GeneratedContent{}, persistErr(op, err)
		}
	}
	e.contents[c.ID] = c
	return c, nil
}

// GetContent returns a generated content record of the project.
func (s *Store) GetContent(_ context.Context, projectID, contentID string) (types.GeneratedContent, error) {
	const op = "project.GetContent"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return types.GeneratedContent{}, err
	}
	defer e.mu.RUnlock()

	c, ok := e.contents[contentID]
	if !ok {
		return types.GeneratedContent{}, apperr.NotFound(op, "content %s not found in project %s", contentID, projectID)
	}
	return c, nil
}

// ListContents returns the project's generated content, oldest first.
func (s *Store) ListContents(_ context.Context, projectID string) ([]types.GeneratedContent, error) {
	e, err := s.liveRead("project.ListContents", projectID)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	out := make([]types.GeneratedContent, 0, len(e.contents))
	for _, c := range e.contents {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
