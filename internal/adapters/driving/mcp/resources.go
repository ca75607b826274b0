package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Pulse resources.
	uriScheme = "pulse://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Registry == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "persons",
		Name:        "persons",
		Description: "Active persons on the roster",
		MIMEType:    "application/json",
	}, s.handlePersonsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "unresolved",
		Name:        "unresolved",
		Description: "Source identities seen in activity but not bound to any person",
		MIMEType:    "application/json",
	}, s.handleUnresolvedResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "persons/{personId}/identifiers",
		Name:        "person-identifiers",
		Description: "Source identities bound to a person",
		MIMEType:    "application/json",
	}, s.handleIdentifiersResource)
}

// handlePersonsResource returns the active persons.
func (s *Server) handlePersonsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	persons, err := s.ports.Registry.ListPersons(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}

	type personInfo struct {
		ID           string `json:"id"`
		DisplayName  string `json:"display_name"`
		PrimaryEmail string `json:"primary_email,omitempty"`
	}

	infos := make([]personInfo, len(persons))
	for i := range persons {
		infos[i] = personInfo{
			ID:           persons[i].ID,
			DisplayName:  persons[i].DisplayName,
			PrimaryEmail: persons[i].PrimaryEmail,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleUnresolvedResource returns actors awaiting a roster update.
func (s *Server) handleUnresolvedResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	actors, err := s.ports.Registry.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unresolved actors: %w", err)
	}

	type actorInfo struct {
		Identifier  string    `json:"identifier"`
		DisplayName string    `json:"display_name,omitempty"`
		Occurrences int       `json:"occurrences"`
		LastSeen    time.Time `json:"last_seen"`
	}

	infos := make([]actorInfo, len(actors))
	for i, a := range actors {
		infos[i] = actorInfo{
			Identifier:  domain.IdentifierRef{SourceType: a.SourceType, SourceKey: a.SourceKey}.String(),
			DisplayName: a.ObservedDisplayName,
			Occurrences: a.Occurrences,
			LastSeen:    a.LastSeen,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleIdentifiersResource returns the bindings of one person.
func (s *Server) handleIdentifiersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	personID := extractPersonID(req.Params.URI)
	if personID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	ids, err := s.ports.Registry.Identifiers(ctx, personID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("listing identifiers: %w", err)
	}

	out := make([]string, len(ids))
	for i := range ids {
		out[i] = domain.IdentifierRef{SourceType: ids[i].SourceType, SourceKey: ids[i].SourceKey}.String()
	}
	return jsonResult(req.Params.URI, out)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractPersonID extracts the person ID from a URI like pulse://persons/{personId}/identifiers.
func extractPersonID(uri string) string {
	const prefix = uriScheme + "persons/"
	const suffix = "/identifiers"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
}
