package models

import "time"

// Attachment is a locally captured file (site photo, scanned test sheet)
// queued for upload to object storage once the owning certificate has been
// accepted by the gateway.
type Attachment struct {
	ID            string
	CertificateID string
	Path          string
	ContentType   string
	Uploaded      bool
	CreatedAt     time.Time
}
