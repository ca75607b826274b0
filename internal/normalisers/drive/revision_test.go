package drive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

func TestRevisionObservation(t *testing.T) {
	file := &drive.File{Id: "1abc", MimeType: MimeTypeGoogleDoc}
	rev := &drive.Revision{
		Id:                "r7",
		ModifiedTime:      "2024-04-10T09:00:00.000+02:00",
		LastModifyingUser: &drive.User{EmailAddress: "ada@example.com", DisplayName: "Ada"},
	}

	obs, err := RevisionObservation(file, rev, "hello\n")

	require.NoError(t, err)
	assert.Equal(t, "drive:1abc", obs.DocumentID)
	assert.Equal(t, domain.SourceDrive, obs.SourceType)
	assert.Equal(t, ActivityFileEdit, obs.ActivityType)
	assert.Equal(t, "r7", obs.RevisionMarker)
	assert.Equal(t, domain.SegmentLines, obs.Segmentation)
	assert.Equal(t, domain.EmailActor("ada@example.com", "Ada"), obs.Editor)
	assert.Equal(t, time.Date(2024, 4, 10, 7, 0, 0, 0, time.UTC), obs.ObservedAt)
}

func TestRevisionObservation_AnonymousEditor(t *testing.T) {
	obs, err := RevisionObservation(
		&drive.File{Id: "1abc"},
		&drive.Revision{Id: "r1", ModifiedTime: "2024-04-10T09:00:00Z"},
		"",
	)

	require.NoError(t, err)
	assert.True(t, obs.Editor.IsZero())
}

func TestRevisionObservation_Invalid(t *testing.T) {
	_, err := RevisionObservation(nil, &drive.Revision{Id: "r"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = RevisionObservation(&drive.File{Id: "f"}, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = RevisionObservation(&drive.File{Id: "f"}, &drive.Revision{Id: "r", ModifiedTime: "yesterday"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFileObservation(t *testing.T) {
	file := &drive.File{
		Id:                "1abc",
		Version:           12,
		ModifiedTime:      "2024-04-10T09:00:00Z",
		LastModifyingUser: &drive.User{EmailAddress: "bob@example.com"},
	}

	obs, err := FileObservation(file, "x\n")

	require.NoError(t, err)
	assert.Equal(t, "v12", obs.RevisionMarker)
	assert.Equal(t, "bob@example.com", obs.Editor.SourceKey)

	_, err = FileObservation(&drive.File{Id: "1abc", ModifiedTime: "2024-04-10T09:00:00Z"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExportMimeTypeAndTrackable(t *testing.T) {
	tests := []struct {
		mime      string
		export    string
		trackable bool
	}{
		{MimeTypeGoogleDoc, ExportMimeText, true},
		{MimeTypeGoogleSlides, ExportMimeText, true},
		{MimeTypeGoogleSheet, ExportMimeCSV, true},
		{"text/markdown", "", true},
		{MimeTypeFolder, "", false},
		{"image/png", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			f := &drive.File{MimeType: tt.mime}
			assert.Equal(t, tt.export, ExportMimeType(f))
			assert.Equal(t, tt.trackable, Trackable(f))
		})
	}

	assert.False(t, Trackable(&drive.File{MimeType: MimeTypeGoogleDoc, Trashed: true}))
	assert.False(t, Trackable(nil))
}
