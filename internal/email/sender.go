package email

import "context"

// Attachment is a file carried by an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error
}
