// Package github turns go-github objects into activity events.
//
// Native IDs are chosen so that re-fetching the same object always yields
// the same activity key:
//   - commit: the commit SHA
//   - pull_request: "owner/repo#number"
//   - review: the review ID
//
// Actors are GitHub logins. A commit whose author has no linked account
// falls back to the commit author email.
package github
