package domain

import "time"

// Artifact is the stored output of a completed generation: where the
// bytes live, what they are, and when they were produced. A session
// holds at most one artifact and drops it on reset.
type Artifact struct {
	StorageKey string
	MimeType   string
	Bytes      int64
	CreatedAt  time.Time
}
