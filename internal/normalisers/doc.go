// Package normalisers holds the edge decoders that turn already-fetched
// platform objects into domain events and observations.
//
// Each sub-package handles one platform:
//   - github: commits, pull requests and reviews from go-github
//   - gmail: messages from the Gmail API
//   - drive: file revisions from the Drive API, for the snapshot tracker
//   - jsonl: newline-delimited wire events validated against a JSON Schema
//
// Normalisers never call a platform API. They decode payloads into the
// shape stored with each activity and leave identity resolution and
// deduplication to the core.
package normalisers
