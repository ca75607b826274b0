// Package drive turns Google Drive file revisions into snapshot tracker
// observations. Content is the exported text of the revision; fetching it
// is the collector's job.
package drive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// ActivityFileEdit is the activity type of Drive content diffs.
const ActivityFileEdit = "file_edit"

// Google Workspace MIME types and the text formats they export to.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"

	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// ExportMimeType returns the format a file must be exported to before it
// can be tracked, or "" when the file is downloaded as is.
func ExportMimeType(file *drive.File) string {
	switch file.MimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return ExportMimeText
	case MimeTypeGoogleSheet:
		return ExportMimeCSV
	default:
		return ""
	}
}

// Trackable reports whether a file has line-oriented text content.
func Trackable(file *drive.File) bool {
	if file == nil || file.MimeType == MimeTypeFolder || file.Trashed {
		return false
	}
	return ExportMimeType(file) != "" || strings.HasPrefix(file.MimeType, "text/")
}

// RevisionObservation converts a revision of file and its exported content
// into an observation.
func RevisionObservation(file *drive.File, rev *drive.Revision, content string) (domain.Observation, error) {
	if file == nil || file.Id == "" {
		return domain.Observation{}, fmt.Errorf("%w: file without ID", domain.ErrInvalidInput)
	}
	if rev == nil || rev.Id == "" {
		return domain.Observation{}, fmt.Errorf("%w: file %s revision without ID", domain.ErrInvalidInput, file.Id)
	}

	at, err := parseTime(rev.ModifiedTime)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("%w: file %s revision %s: %v", domain.ErrInvalidInput, file.Id, rev.Id, err)
	}

	return observation(file.Id, rev.Id, content, editorOf(rev.LastModifyingUser), at), nil
}

// FileObservation converts the head version of a file into an observation.
// It is used when the revisions endpoint is not available for the file.
func FileObservation(file *drive.File, content string) (domain.Observation, error) {
	if file == nil || file.Id == "" {
		return domain.Observation{}, fmt.Errorf("%w: file without ID", domain.ErrInvalidInput)
	}
	if file.Version == 0 {
		return domain.Observation{}, fmt.Errorf("%w: file %s has no version", domain.ErrInvalidInput, file.Id)
	}

	at, err := parseTime(file.ModifiedTime)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("%w: file %s: %v", domain.ErrInvalidInput, file.Id, err)
	}

	rev := "v" + strconv.FormatInt(file.Version, 10)
	return observation(file.Id, rev, content, editorOf(file.LastModifyingUser), at), nil
}

func observation(fileID, rev, content string, editor domain.Actor, at time.Time) domain.Observation {
	return domain.Observation{
		DocumentID:     "drive:" + fileID,
		SourceType:     domain.SourceDrive,
		ActivityType:   ActivityFileEdit,
		RevisionMarker: rev,
		Content:        content,
		Segmentation:   domain.SegmentLines,
		Editor:         editor,
		ObservedAt:     at,
	}
}

// editorOf identifies the editor by email; Drive user IDs are not stable
// across API surfaces.
func editorOf(u *drive.User) domain.Actor {
	if u == nil || u.EmailAddress == "" {
		return domain.Actor{}
	}
	return domain.EmailActor(u.EmailAddress, u.DisplayName)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing modified time")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
