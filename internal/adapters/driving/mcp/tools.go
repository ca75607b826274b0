package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

const (
	defaultLimit  = 20
	defaultRecent = 5
)

// QueryActivitiesInput is the input schema for the query_activities tool.
type QueryActivitiesInput struct {
	PersonID     string `json:"person_id,omitempty" jsonschema:"canonical person id to filter by"`
	Identifier   string `json:"identifier,omitempty" jsonschema:"a source identity in source_type:source_key form, resolved to its person"`
	SourceType   string `json:"source_type,omitempty" jsonschema:"one of github, slack, notion, drive, email"`
	ActivityType string `json:"activity_type,omitempty" jsonschema:"activity type such as commit or content_diff"`
	Since        string `json:"since,omitempty" jsonschema:"inclusive lower bound, RFC 3339"`
	Until        string `json:"until,omitempty" jsonschema:"exclusive upper bound, RFC 3339"`
	Cursor       string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of activities to return (default 20)"`
}

// QueryActivitiesOutput is the output schema for the query_activities tool.
type QueryActivitiesOutput struct {
	Activities []ActivityOutput `json:"activities"`
	Count      int              `json:"count"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ActivityOutput represents a single activity.
type ActivityOutput struct {
	Key          string          `json:"key"`
	PersonID     string          `json:"person_id"`
	Actor        string          `json:"actor"`
	SourceType   string          `json:"source_type"`
	ActivityType string          `json:"activity_type"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// PersonSummariesInput is the input schema for the person_summaries tool.
type PersonSummariesInput struct {
	PersonIDs []string `json:"person_ids,omitempty" jsonschema:"persons to summarise; all active persons when empty"`
	Recent    int      `json:"recent,omitempty" jsonschema:"number of recent activities per person (default 5)"`
}

// PersonSummariesOutput is the output schema for the person_summaries tool.
type PersonSummariesOutput struct {
	Summaries []SummaryOutput `json:"summaries"`
}

// SummaryOutput is one person's aggregate.
type SummaryOutput struct {
	PersonID      string           `json:"person_id"`
	DisplayName   string           `json:"display_name,omitempty"`
	ActivityCount int              `json:"activity_count"`
	Recent        []ActivityOutput `json:"recent"`
}

// ResolveIdentifierInput is the input schema for the resolve_identifier tool.
type ResolveIdentifierInput struct {
	SourceType string `json:"source_type" jsonschema:"one of github, slack, notion, drive, email"`
	SourceKey  string `json:"source_key" jsonschema:"the native key on that source, matched case-insensitively"`
}

// ResolveIdentifierOutput is the output schema for the resolve_identifier tool.
type ResolveIdentifierOutput struct {
	Resolved    bool   `json:"resolved"`
	PersonID    string `json:"person_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_activities",
		Description: "List activities newest first, filtered by person, identity, source, type or time window",
	}, s.handleQueryActivities)

	if s.ports.Summaries != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "person_summaries",
			Description: "Activity count and most recent activities for each person",
		}, s.handlePersonSummaries)
	}

	if s.ports.Registry != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "resolve_identifier",
			Description: "Find the person a source identity belongs to",
		}, s.handleResolveIdentifier)
	}
}

// handleQueryActivities handles the query_activities tool invocation.
func (s *Server) handleQueryActivities(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryActivitiesInput,
) (*mcp.CallToolResult, QueryActivitiesOutput, error) {
	filter, err := input.filter()
	if err != nil {
		return nil, QueryActivitiesOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	page, err := s.ports.Activities.QueryPage(scoped(ctx), filter, input.Cursor, limit)
	if err != nil {
		return nil, QueryActivitiesOutput{}, err
	}

	output := QueryActivitiesOutput{
		Activities: make([]ActivityOutput, len(page.Activities)),
		Count:      len(page.Activities),
		NextCursor: page.NextCursor,
	}
	for i := range page.Activities {
		output.Activities[i] = toActivityOutput(&page.Activities[i])
	}
	return nil, output, nil
}

// handlePersonSummaries handles the person_summaries tool invocation.
func (s *Server) handlePersonSummaries(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PersonSummariesInput,
) (*mcp.CallToolResult, PersonSummariesOutput, error) {
	ctx = scoped(ctx)
	recent := input.Recent
	if recent <= 0 {
		recent = defaultRecent
	}

	ids := input.PersonIDs
	names := make(map[string]string)
	if len(ids) == 0 && s.ports.Registry != nil {
		persons, err := s.ports.Registry.ListPersons(ctx, false)
		if err != nil {
			return nil, PersonSummariesOutput{}, fmt.Errorf("listing persons: %w", err)
		}
		for i := range persons {
			ids = append(ids, persons[i].ID)
			names[persons[i].ID] = persons[i].DisplayName
		}
	}

	summaries, err := s.ports.Summaries.Summaries(ctx, ids, recent)
	if err != nil {
		return nil, PersonSummariesOutput{}, err
	}

	output := PersonSummariesOutput{Summaries: make([]SummaryOutput, len(summaries))}
	for i := range summaries {
		out := SummaryOutput{
			PersonID:      summaries[i].PersonID,
			DisplayName:   names[summaries[i].PersonID],
			ActivityCount: summaries[i].ActivityCount,
			Recent:        make([]ActivityOutput, len(summaries[i].Recent)),
		}
		for j := range summaries[i].Recent {
			out.Recent[j] = toActivityOutput(&summaries[i].Recent[j])
		}
		output.Summaries[i] = out
	}
	return nil, output, nil
}

// handleResolveIdentifier handles the resolve_identifier tool invocation.
func (s *Server) handleResolveIdentifier(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveIdentifierInput,
) (*mcp.CallToolResult, ResolveIdentifierOutput, error) {
	st, err := domain.ParseSourceType(input.SourceType)
	if err != nil {
		return nil, ResolveIdentifierOutput{}, err
	}
	personID, ok, err := s.ports.Registry.Resolve(ctx, st, input.SourceKey)
	if err != nil {
		return nil, ResolveIdentifierOutput{}, err
	}
	if !ok {
		return nil, ResolveIdentifierOutput{}, nil
	}

	output := ResolveIdentifierOutput{Resolved: true, PersonID: personID}
	if p, err := s.ports.Registry.GetPerson(ctx, personID); err == nil {
		output.DisplayName = p.DisplayName
	}
	return nil, output, nil
}

func (in QueryActivitiesInput) filter() (domain.ActivityFilter, error) {
	f := domain.ActivityFilter{
		PersonID:     in.PersonID,
		ActivityType: in.ActivityType,
	}
	if in.SourceType != "" {
		st, err := domain.ParseSourceType(in.SourceType)
		if err != nil {
			return f, err
		}
		f.SourceType = st
	}
	if in.Identifier != "" {
		ref, err := domain.ParseIdentifierRef(in.Identifier)
		if err != nil {
			return f, err
		}
		f.Identifier = ref
	}
	var err error
	if f.Since, err = parseTime("since", in.Since); err != nil {
		return f, err
	}
	if f.Until, err = parseTime("until", in.Until); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrInvalidInput, name)
	}
	return t.UTC(), nil
}

func toActivityOutput(a *domain.Activity) ActivityOutput {
	return ActivityOutput{
		Key:          a.Key,
		PersonID:     a.AttributedTo(),
		Actor:        a.Actor.String(),
		SourceType:   string(a.SourceType),
		ActivityType: a.ActivityType,
		OccurredAt:   a.OccurredAt,
		Payload:      a.Payload.Data,
	}
}
