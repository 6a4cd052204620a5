// Package sqlstore persists tokens with bun, encrypting payloads at rest
// through the configured secret provider.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-keyring/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// TokenStore is the durable core.TokenStore. Save honors the configured
// policy inside a transaction: singleton clears the (service, user) pair,
// multi replaces the row holding the same credential identity.
type TokenStore struct {
	db      *bun.DB
	repo    repository.Repository[*tokenRecord]
	policy  core.StorePolicy
	codec   core.TokenCodec
	secrets core.SecretProvider

	encryptionKeyID   string
	encryptionVersion int
}

func (s *TokenStore) Save(ctx context.Context, userID string, token core.Token) (core.TokenRef, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.TokenRef{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	serviceName := strings.TrimSpace(token.ServiceName)
	userID = strings.TrimSpace(userID)
	if serviceName == "" {
		return core.TokenRef{}, fmt.Errorf("sqlstore: token service name is required")
	}
	if userID == "" {
		return core.TokenRef{}, fmt.Errorf("sqlstore: token user id is required")
	}
	if err := token.Kind.Validate(); err != nil {
		return core.TokenRef{}, err
	}

	encrypted, err := s.sealPayload(ctx, token)
	if err != nil {
		return core.TokenRef{}, err
	}

	uniqueID := token.UniqueID()
	now := time.Now().UTC()
	record := &tokenRecord{
		ServiceName:       serviceName,
		UserID:            userID,
		UniqueID:          uniqueID,
		Kind:              string(token.Kind),
		EncryptedPayload:  encrypted,
		PayloadFormat:     s.codec.Format(),
		PayloadVersion:    s.codec.Version(),
		Meta:              copyAnyMap(token.Meta),
		EncryptionKeyID:   s.encryptionKeyID,
		EncryptionVersion: s.encryptionVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var ref core.TokenRef
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if s.policy == core.StorePolicySingleton {
			if _, deleteErr := tx.NewDelete().
				Model((*tokenRecord)(nil)).
				Where("service_name = ?", serviceName).
				Where("user_id = ?", userID).
				Exec(ctx); deleteErr != nil {
				return deleteErr
			}
		} else {
			// Multi policy keeps one row per distinct credential: saving the
			// same material again reuses the existing row id.
			var existingID string
			selectErr := tx.NewSelect().
				Model((*tokenRecord)(nil)).
				Column("id").
				Where("?TableAlias.service_name = ?", serviceName).
				Where("?TableAlias.user_id = ?", userID).
				Where("?TableAlias.unique_id = ?", uniqueID).
				Limit(1).
				Scan(ctx, &existingID)
			if selectErr == nil && strings.TrimSpace(existingID) != "" {
				record.ID = existingID
				if _, deleteErr := tx.NewDelete().
					Model((*tokenRecord)(nil)).
					Where("id = ?", existingID).
					Exec(ctx); deleteErr != nil {
					return deleteErr
				}
			}
		}

		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		ref = core.TokenRef{
			ID:          inserted.ID,
			ServiceName: serviceName,
			UserID:      userID,
			UniqueID:    uniqueID,
		}
		return nil
	})
	if err != nil {
		return core.TokenRef{}, err
	}
	return ref, nil
}

func (s *TokenStore) Get(ctx context.Context, serviceName, userID, tokenID string) (core.Token, error) {
	if s == nil || s.repo == nil {
		return core.Token{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	records, err := s.pairRecords(ctx, serviceName, userID, strings.TrimSpace(tokenID), 2)
	if err != nil {
		return core.Token{}, err
	}
	switch len(records) {
	case 0:
		return core.Token{}, core.ErrTokenNotFound
	case 1:
		return s.openRecord(ctx, records[0])
	}
	return core.Token{}, core.ErrAmbiguousToken
}

func (s *TokenStore) List(ctx context.Context, filter core.TokenFilter) ([]core.Token, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}

	criteria := []repository.SelectCriteria{repository.OrderBy("created_at ASC")}
	if serviceName := strings.TrimSpace(filter.ServiceName); serviceName != "" {
		criteria = append(criteria, repository.SelectBy("service_name", "=", serviceName))
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		criteria = append(criteria, repository.SelectBy("user_id", "=", userID))
	}

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}

	out := make([]core.Token, 0, len(records))
	for _, record := range records {
		token, openErr := s.openRecord(ctx, record)
		if openErr != nil {
			return nil, openErr
		}
		out = append(out, token)
	}
	return out, nil
}

func (s *TokenStore) Delete(ctx context.Context, serviceName, userID, tokenID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: token store is not configured")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		records, err := s.pairRecords(ctx, serviceName, userID, "", 2)
		if err != nil {
			return false, err
		}
		switch len(records) {
		case 0:
			return false, nil
		case 1:
			tokenID = records[0].ID
		default:
			return false, core.ErrAmbiguousToken
		}
	}

	result, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("service_name = ?", strings.TrimSpace(serviceName)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("id = ?", tokenID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *TokenStore) Count(ctx context.Context, serviceName, userID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: token store is not configured")
	}
	count, err := s.db.NewSelect().
		Model((*tokenRecord)(nil)).
		Where("?TableAlias.service_name = ?", strings.TrimSpace(serviceName)).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *TokenStore) pairRecords(ctx context.Context, serviceName, userID, tokenID string, limit int) ([]*tokenRecord, error) {
	criteria := []repository.SelectCriteria{
		repository.SelectBy("service_name", "=", strings.TrimSpace(serviceName)),
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
	}
	if tokenID != "" {
		criteria = append(criteria, repository.SelectBy("id", "=", tokenID))
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *TokenStore) sealPayload(ctx context.Context, token core.Token) ([]byte, error) {
	encoded, err := s.codec.Encode(token)
	if err != nil {
		return nil, err
	}
	if s.secrets == nil {
		return encoded, nil
	}
	sealed, err := s.secrets.Encrypt(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encrypt token payload: %w", err)
	}
	return sealed, nil
}

func (s *TokenStore) openRecord(ctx context.Context, record *tokenRecord) (core.Token, error) {
	if record == nil {
		return core.Token{}, core.ErrTokenNotFound
	}
	payload := record.EncryptedPayload
	if s.secrets != nil {
		opened, err := s.secrets.Decrypt(ctx, payload)
		if err != nil {
			return core.Token{}, fmt.Errorf("sqlstore: decrypt token payload: %w", err)
		}
		payload = opened
	}

	codec := s.codecFor(record.PayloadFormat)
	token, err := codec.Decode(payload)
	if err != nil {
		return core.Token{}, err
	}
	if strings.TrimSpace(token.ServiceName) == "" {
		token.ServiceName = record.ServiceName
	}
	if len(token.Meta) == 0 && len(record.Meta) > 0 {
		token = token.WithMeta(record.Meta)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = record.CreatedAt
	}
	return token, nil
}

// codecFor picks the decoder by the stored payload format, so rows written
// by older installations still open.
func (s *TokenStore) codecFor(format string) core.TokenCodec {
	if format == core.TokenPayloadFormatLegacySecret {
		return core.LegacySecretCodec{}
	}
	if s.codec != nil && s.codec.Format() == format {
		return s.codec
	}
	return core.JSONTokenCodec{}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
