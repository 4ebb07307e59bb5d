package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// CreateAPIKey stores the hash of a plaintext key bound to an actor. The
// plaintext is never persisted; the caller hands it out once.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name, key string) (domain.APIKey, error) {
	if actorID == "" {
		return domain.APIKey{}, ValidationError{Field: "actor_id", Reason: "required"}
	}
	if key == "" {
		return domain.APIKey{}, ValidationError{Field: "key", Reason: "required"}
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	rec := domain.APIKey{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("api_key|"+actorID+"|"+nowStr)).String(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(key),
		CreatedAt: nowStr,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actorID}, nowStr); err != nil {
		return domain.APIKey{}, err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, rec); err != nil {
		return domain.APIKey{}, err
	}
	if err := e.Events.Append(ctx, tx, "api_key.created", "", "api_key", rec.ID, actorID, events.Payload{
		"name": name,
	}); err != nil {
		return domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, err
	}
	return rec, nil
}
