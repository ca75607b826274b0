package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/pulse/internal/batch"
	"github.com/custodia-labs/pulse/internal/core/domain"
	"github.com/custodia-labs/pulse/internal/normalisers/jsonl"
)

// defaultRecent is the number of recent activities per summary when the
// request does not say.
const defaultRecent = 5

// handleIngest handles POST /v1/events. The body is one or more events in
// the NDJSON wire format.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	events, rejected, err := jsonl.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read body: %v", domain.ErrInvalidInput, err))
		return
	}
	if len(events) == 0 {
		if len(rejected) > 0 {
			writeError(w, r, rejected[0])
			return
		}
		writeError(w, r, fmt.Errorf("%w: no events in body", domain.ErrInvalidInput))
		return
	}

	summary, err := s.ports.Runner.Run(r.Context(), events)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for range rejected {
		summary.RecordMalformed()
	}
	writeJSON(w, http.StatusOK, newRunResponse(summary, rejected))
}

// handleActivities handles GET /v1/activities.
//
// Query params: person, identifier (source:key), source, type, since, until,
// cursor, limit, include=person_counts.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intParam(q, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.ports.Activities.QueryPage(r.Context(), filter, q.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := activitiesResponse{
		Activities: make([]activityJSON, len(page.Activities)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Activities {
		resp.Activities[i] = toActivityJSON(&page.Activities[i])
	}

	if includes(q, "person_counts") {
		counts, err := s.personCounts(r, page.Activities)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.PersonCounts = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

// personCounts queues one count per distinct person on the request scope
// before awaiting any, so the whole page costs a single count query.
func (s *Server) personCounts(r *http.Request, activities []domain.Activity) (map[string]int, error) {
	thunks := make(map[string]batch.Thunk[int])
	for i := range activities {
		id := activities[i].AttributedTo()
		if id == domain.UnknownPersonID {
			continue
		}
		if _, ok := thunks[id]; !ok {
			thunks[id] = s.ports.Aggregates.ActivityCount(r.Context(), id)
		}
	}

	counts := make(map[string]int, len(thunks))
	for id, thunk := range thunks {
		n, err := thunk()
		if err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, nil
}

// handleSummaries handles GET /v1/people/summary?ids=a,b&recent=5.
// Without ids every active person is summarised.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recent, err := intParam(q, "recent", defaultRecent)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := splitList(q.Get("ids"))
	names := make(map[string]string)
	if len(ids) == 0 {
		persons, err := s.ports.Registry.ListPersons(r.Context(), false)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for i := range persons {
			ids = append(ids, persons[i].ID)
			names[persons[i].ID] = persons[i].DisplayName
		}
	}

	summaries, err := s.ports.Summaries.Summaries(r.Context(), ids, recent)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]summaryJSON, len(summaries))
	for i := range summaries {
		out[i] = summaryJSON{
			PersonID:      summaries[i].PersonID,
			DisplayName:   names[summaries[i].PersonID],
			ActivityCount: summaries[i].ActivityCount,
			Recent:        make([]activityJSON, len(summaries[i].Recent)),
		}
		for j := range summaries[i].Recent {
			out[i].Recent[j] = toActivityJSON(&summaries[i].Recent[j])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": out})
}

// handleBind handles POST /v1/identifiers.
func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := domain.ParseSourceType(req.SourceType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ports.Registry.Bind(r.Context(), req.PersonID, st, req.SourceKey); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bindRequest{PersonID: req.PersonID, SourceType: string(st), SourceKey: req.SourceKey})
}

// handleResolve handles GET /v1/resolve?source_type=github&source_key=jane.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := domain.ParseSourceType(q.Get("source_type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	personID, ok, err := s.ports.Registry.Resolve(r.Context(), st, q.Get("source_key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Resolved: ok, PersonID: personID})
}

// handleUnresolved handles GET /v1/unresolved.
func (s *Server) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	actors, err := s.ports.Registry.Unresolved(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]unresolvedJSON, len(actors))
	for i, a := range actors {
		out[i] = unresolvedJSON{
			SourceType:          string(a.SourceType),
			SourceKey:           a.SourceKey,
			ObservedDisplayName: a.ObservedDisplayName,
			Occurrences:         a.Occurrences,
			FirstSeen:           a.FirstSeen,
			LastSeen:            a.LastSeen,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"unresolved": out})
}

// handleObserve handles POST /v1/documents/{documentID}/observations.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	docID, err := url.PathUnescape(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: document id: %v", domain.ErrInvalidInput, err))
		return
	}

	obs := domain.Observation{
		DocumentID:     docID,
		SourceType:     domain.SourceType(strings.ToLower(req.SourceType)),
		ActivityType:   req.ActivityType,
		RevisionMarker: req.Revision,
		Content:        req.Content,
		Segmentation:   domain.Segmentation(req.Segmentation),
	}
	if req.Editor != nil {
		obs.Editor = req.Editor.DomainActor()
	}
	if req.ObservedAt != nil {
		obs.ObservedAt = req.ObservedAt.UTC()
	}

	res, err := s.ports.Tracker.Observe(r.Context(), obs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackJSON(res))
}

func parseFilter(q url.Values) (domain.ActivityFilter, error) {
	f := domain.ActivityFilter{
		PersonID:     q.Get("person"),
		ActivityType: q.Get("type"),
	}
	if v := q.Get("source"); v != "" {
		st, err := domain.ParseSourceType(v)
		if err != nil {
			return f, err
		}
		f.SourceType = st
	}
	if v := q.Get("identifier"); v != "" {
		ref, err := domain.ParseIdentifierRef(v)
		if err != nil {
			return f, err
		}
		f.Identifier = ref
	}
	var err error
	if f.Since, err = timeParam(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = timeParam(q, "until"); err != nil {
		return f, err
	}
	return f, nil
}

func timeParam(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrInvalidInput, name)
	}
	return t.UTC(), nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
	}
	return n, nil
}

func includes(q url.Values, what string) bool {
	for _, v := range q["include"] {
		for _, part := range splitList(v) {
			if part == what {
				return true
			}
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidInput, maxErr.Limit)
		}
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
