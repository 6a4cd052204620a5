package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type tokenRecord struct {
	bun.BaseModel `bun:"table:keyring_tokens,alias:kt"`

	ID                string         `bun:"id,pk"`
	ServiceName       string         `bun:"service_name,notnull"`
	UserID            string         `bun:"user_id,notnull"`
	UniqueID          string         `bun:"unique_id,notnull"`
	Kind              string         `bun:"kind,notnull"`
	EncryptedPayload  []byte         `bun:"encrypted_payload,notnull"`
	PayloadFormat     string         `bun:"payload_format,notnull"`
	PayloadVersion    int            `bun:"payload_version,notnull"`
	Meta              map[string]any `bun:"meta,type:jsonb,notnull"`
	EncryptionKeyID   string         `bun:"encryption_key_id,notnull"`
	EncryptionVersion int            `bun:"encryption_version,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
