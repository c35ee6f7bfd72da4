package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/planned"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	UserName          string          `db:"user_name"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService writes the sys_audit trail. It implements planned.Auditor.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
	now               func() time.Time
}

var _ planned.Auditor = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
		now:               func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record implements planned.Auditor. It joins the caller's transaction, so
// a rolled back transition leaves no audit row.
func (s *AuditService) Record(ctx context.Context, e planned.AuditEntry) error {
	changes, err := buildChanges(e)
	if err != nil {
		return err
	}

	entry := AuditEntry{
		EntityType: "planned_transaction",
		EntityID:   e.PlannedID,
		Action:     string(e.Action),
		UserID:     e.ActorID,
		UserName:   e.ActorName,
		Changes:    changes,
	}
	if entry.UserID == "" {
		if actor := appctx.GetActor(ctx); actor != nil {
			entry.UserID = actor.UserID
		}
	}
	return s.Log(ctx, entry)
}

func buildChanges(e planned.AuditEntry) (json.RawMessage, error) {
	doc := map[string]any{}
	if e.Before != nil && e.After != nil {
		doc["diff"] = Diff(StructToMap(e.Before), StructToMap(e.After))
	} else if e.After != nil {
		doc["after"] = e.After
	} else if e.Before != nil {
		doc["before"] = e.Before
	}
	if len(e.Details) > 0 {
		doc["details"] = e.Details
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal audit changes: %w", err)
	}
	return raw, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	// Compress large changes
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql, args, err := InsertStruct("sys_audit", &entry, ExtractDBColumns[AuditEntry]()).ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// GetEntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) GetEntityHistory(
	ctx context.Context,
	entityType string,
	entityID id.ID,
	limit int,
) ([]AuditEntry, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, user_id, user_name,
			   changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &e.UserName,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := s.decompress(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *AuditService) decompress(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	return nil
}

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	// Find changed and new fields
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	// Find deleted fields
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

// equal compares two field values, looking through pointers.
func equal(a, b any) bool {
	return reflect.DeepEqual(deref(a), deref(b))
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
