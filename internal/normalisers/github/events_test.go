package github

import (
	"encoding/json"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

var when = time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)

func TestCommitEvent_LinkedAccount(t *testing.T) {
	c := &gh.RepositoryCommit{
		SHA:     gh.Ptr("abc123"),
		HTMLURL: gh.Ptr("https://github.com/acme/api/commit/abc123"),
		Author:  &gh.User{Login: gh.Ptr("JaneDoe")},
		Commit: &gh.Commit{
			Message: gh.Ptr("Fix race"),
			Author: &gh.CommitAuthor{
				Name:  gh.Ptr("Jane Doe"),
				Email: gh.Ptr("jane@example.com"),
				Date:  &gh.Timestamp{Time: when},
			},
		},
		Stats: &gh.CommitStats{Additions: gh.Ptr(10), Deletions: gh.Ptr(2)},
	}

	e, err := CommitEvent("acme/api", c)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceGitHub, e.SourceType)
	assert.Equal(t, "github:commit:abc123", e.Key())
	assert.Equal(t, when, e.OccurredAt)
	assert.Equal(t, domain.Actor{SourceType: domain.SourceGitHub, SourceKey: "JaneDoe", DisplayName: "Jane Doe"}, e.Actor)

	var p CommitPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	assert.Equal(t, "acme/api", p.Repo)
	assert.Equal(t, "Fix race", p.Message)
	assert.Equal(t, 10, p.Additions)
	assert.Equal(t, 2, p.Deletions)
}

func TestCommitEvent_FallsBackToEmail(t *testing.T) {
	c := &gh.RepositoryCommit{
		SHA: gh.Ptr("def456"),
		Commit: &gh.Commit{
			Author: &gh.CommitAuthor{Name: gh.Ptr("Bot"), Email: gh.Ptr("bot@example.com")},
			Committer: &gh.CommitAuthor{
				Date: &gh.Timestamp{Time: when},
			},
		},
	}

	e, err := CommitEvent("acme/api", c)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceEmail, e.Actor.SourceType)
	assert.Equal(t, "bot@example.com", e.Actor.SourceKey)
	assert.Equal(t, when, e.OccurredAt)
}

func TestCommitEvent_Invalid(t *testing.T) {
	_, err := CommitEvent("acme/api", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = CommitEvent("acme/api", &gh.RepositoryCommit{SHA: gh.Ptr("x"), Commit: &gh.Commit{}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = CommitEvent("acme/api", &gh.RepositoryCommit{
		SHA:    gh.Ptr("x"),
		Author: &gh.User{Login: gh.Ptr("jane")},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "missing timestamp")
}

func TestPullRequestEvent(t *testing.T) {
	pr := &gh.PullRequest{
		Number:    gh.Ptr(42),
		Title:     gh.Ptr("Add cursor paging"),
		State:     gh.Ptr("open"),
		User:      &gh.User{Login: gh.Ptr("ada-l")},
		CreatedAt: &gh.Timestamp{Time: when},
		Head:      &gh.PullRequestBranch{Ref: gh.Ptr("feature")},
		Base:      &gh.PullRequestBranch{Ref: gh.Ptr("main")},
	}

	e, err := PullRequestEvent("acme/api", pr)

	require.NoError(t, err)
	assert.Equal(t, "github:pull_request:acme/api#42", e.Key())
	assert.Equal(t, "ada-l", e.Actor.SourceKey)

	var p PullRequestPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	assert.Equal(t, 42, p.Number)
	assert.Equal(t, "feature", p.HeadBranch)
	assert.Equal(t, "main", p.BaseBranch)

	_, err = PullRequestEvent("acme/api", &gh.PullRequest{Number: gh.Ptr(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReviewEvent(t *testing.T) {
	r := &gh.PullRequestReview{
		ID:          gh.Ptr(int64(9001)),
		User:        &gh.User{Login: gh.Ptr("bob")},
		State:       gh.Ptr("APPROVED"),
		SubmittedAt: &gh.Timestamp{Time: when},
	}

	e, err := ReviewEvent("acme/api", 42, r)

	require.NoError(t, err)
	assert.Equal(t, "github:review:9001", e.Key())

	var p ReviewPayload
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	assert.Equal(t, 42, p.PRNumber)
	assert.Equal(t, "APPROVED", p.State)

	_, err = ReviewEvent("acme/api", 42, &gh.PullRequestReview{ID: gh.Ptr(int64(1))})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
