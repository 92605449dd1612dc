package idempotency

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore-backed store.
type FirestoreConfig struct {
	ProjectID      string
	CollectionName string
}

// FirestoreStore implements Store on a Firestore collection. Document Create
// fails with AlreadyExists when the key is present, which gives us the
// atomic set-if-absent primitive. Expiry relies on a TTL policy configured
// on the expireAt field.
//
// ALLOW FIRESTORE TO BE USED IN LOW VOLUME DEPLOYMENTS
// don't use it like this in high volume deployments - that's what redis is for.
type FirestoreStore struct {
	client         *firestore.Client
	collectionName string
	logger         zerolog.Logger
}

// firstSeenDoc is the marker document. ExpireAt drives the collection's TTL
// policy; the document carries no other state.
type firstSeenDoc struct {
	SeenAt   time.Time `firestore:"seenAt"`
	ExpireAt time.Time `firestore:"expireAt"`
}

// NewFirestoreStore creates a new FirestoreStore over an injected client.
func NewFirestoreStore(cfg *FirestoreConfig, client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("FirestoreStore initialized.")

	return &FirestoreStore{
		client:         client,
		collectionName: cfg.CollectionName,
		logger:         logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// SetIfAbsent creates the marker document, reporting false when it already
// exists. Any other Firestore error propagates.
func (s *FirestoreStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	doc := firstSeenDoc{SeenAt: now, ExpireAt: now.Add(ttl)}

	_, err := s.client.Collection(s.collectionName).Doc(key).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to create marker document in Firestore.")
		return false, fmt.Errorf("firestore create for %s: %w", key, err)
	}
	return true, nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreStore) Close() error {
	s.logger.Info().Msg("FirestoreStore does not close the injected Firestore client.")
	return nil
}
