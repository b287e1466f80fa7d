package email

import "time"

// Envelope holds the parsed envelope data from an IMAP message,
// plus a short plain-text snippet of its body.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Seen      bool
	UID       uint32

	// Snippet is the first part of the plain-text body, suitable for
	// a notification line. Empty when the body could not be parsed.
	Snippet string
}
