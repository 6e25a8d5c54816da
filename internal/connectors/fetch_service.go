package connectors

import (
	"receiptsync/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	Known   int // already in the database, left at their current status
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

// FetchAndStore downloads up to max messages from the labeled mailbox and
// lands them. Messages seen in an earlier fetch keep their processing status
// so a processed receipt is never re-queued by a refetch.
func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return FetchResult{}, err
		}
		if existing != nil && existing.Status != "fetched" {
			result.Known++
			continue
		}
		if _, err := s.store.Store(msg); err != nil {
			return FetchResult{}, err
		}
		result.Stored++
	}

	return result, nil
}
