// Package connectors pulls receipt mail out of mailboxes and lands it in
// the raw store and the database. Providers implement MailConnector; the
// fetch service is provider-agnostic.
package connectors

import "receiptsync/internal"

type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
