package github

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Activity types produced by this package.
const (
	ActivityCommit      = "commit"
	ActivityPullRequest = "pull_request"
	ActivityReview      = "review"
)

// CommitPayload is the stored payload of a commit activity.
type CommitPayload struct {
	Repo      string `json:"repo"`
	SHA       string `json:"sha"`
	Message   string `json:"message"`
	URL       string `json:"url,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// PullRequestPayload is the stored payload of a pull request activity.
type PullRequestPayload struct {
	Repo       string `json:"repo"`
	Number     int    `json:"number"`
	Title      string `json:"title"`
	State      string `json:"state"`
	Merged     bool   `json:"merged"`
	HeadBranch string `json:"head_branch"`
	BaseBranch string `json:"base_branch"`
	URL        string `json:"url,omitempty"`
}

// ReviewPayload is the stored payload of a review activity.
type ReviewPayload struct {
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	State    string `json:"state"`
	Body     string `json:"body,omitempty"`
	URL      string `json:"url,omitempty"`
}

// CommitEvent converts a repository commit into an event.
// repo is "owner/name".
func CommitEvent(repo string, c *gh.RepositoryCommit) (domain.Event, error) {
	if c == nil || c.GetSHA() == "" {
		return domain.Event{}, fmt.Errorf("%w: commit without SHA", domain.ErrInvalidInput)
	}

	author := c.GetCommit().GetAuthor()
	actor, err := commitActor(c)
	if err != nil {
		return domain.Event{}, err
	}

	at := author.GetDate().Time
	if at.IsZero() {
		at = c.GetCommit().GetCommitter().GetDate().Time
	}

	return newEvent(ActivityCommit, c.GetSHA(), at, actor, CommitPayload{
		Repo:      repo,
		SHA:       c.GetSHA(),
		Message:   c.GetCommit().GetMessage(),
		URL:       c.GetHTMLURL(),
		Additions: c.GetStats().GetAdditions(),
		Deletions: c.GetStats().GetDeletions(),
	})
}

// commitActor prefers the linked GitHub account over the raw author email.
func commitActor(c *gh.RepositoryCommit) (domain.Actor, error) {
	if login := c.GetAuthor().GetLogin(); login != "" {
		return domain.Actor{
			SourceType:  domain.SourceGitHub,
			SourceKey:   login,
			DisplayName: c.GetCommit().GetAuthor().GetName(),
		}, nil
	}
	author := c.GetCommit().GetAuthor()
	if email := strings.TrimSpace(author.GetEmail()); email != "" {
		return domain.EmailActor(email, author.GetName()), nil
	}
	return domain.Actor{}, fmt.Errorf("%w: commit %s has no author", domain.ErrInvalidInput, c.GetSHA())
}

// PullRequestEvent converts a pull request into an "opened" event of its author.
func PullRequestEvent(repo string, pr *gh.PullRequest) (domain.Event, error) {
	if pr == nil || pr.GetNumber() == 0 {
		return domain.Event{}, fmt.Errorf("%w: pull request without number", domain.ErrInvalidInput)
	}
	login := pr.GetUser().GetLogin()
	if login == "" {
		return domain.Event{}, fmt.Errorf("%w: pull request %s#%d has no author", domain.ErrInvalidInput, repo, pr.GetNumber())
	}

	nativeID := fmt.Sprintf("%s#%d", repo, pr.GetNumber())
	actor := domain.Actor{SourceType: domain.SourceGitHub, SourceKey: login, DisplayName: pr.GetUser().GetName()}
	return newEvent(ActivityPullRequest, nativeID, pr.GetCreatedAt().Time, actor, PullRequestPayload{
		Repo:       repo,
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		State:      pr.GetState(),
		Merged:     pr.GetMerged(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		URL:        pr.GetHTMLURL(),
	})
}

// ReviewEvent converts a submitted pull request review into an event.
func ReviewEvent(repo string, prNumber int, r *gh.PullRequestReview) (domain.Event, error) {
	if r == nil || r.GetID() == 0 {
		return domain.Event{}, fmt.Errorf("%w: review without ID", domain.ErrInvalidInput)
	}
	login := r.GetUser().GetLogin()
	if login == "" {
		return domain.Event{}, fmt.Errorf("%w: review %d has no author", domain.ErrInvalidInput, r.GetID())
	}

	actor := domain.Actor{SourceType: domain.SourceGitHub, SourceKey: login}
	return newEvent(ActivityReview, strconv.FormatInt(r.GetID(), 10), r.GetSubmittedAt().Time, actor, ReviewPayload{
		Repo:     repo,
		PRNumber: prNumber,
		State:    r.GetState(),
		Body:     r.GetBody(),
		URL:      r.GetHTMLURL(),
	})
}

func newEvent(activityType, nativeID string, at time.Time, actor domain.Actor, payload any) (domain.Event, error) {
	if at.IsZero() {
		return domain.Event{}, fmt.Errorf("%w: %s %s has no timestamp", domain.ErrInvalidInput, activityType, nativeID)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode %s payload: %w", activityType, err)
	}
	return domain.Event{
		SourceType:   domain.SourceGitHub,
		ActivityType: activityType,
		NativeID:     nativeID,
		OccurredAt:   at.UTC(),
		Actor:        actor,
		Payload:      data,
	}, nil
}
