package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elysia-dev/elysia-korea-pf/core/events"
	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	"github.com/elysia-dev/elysia-korea-pf/observability"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/models"
)

const (
	sinkName     = "indexer"
	defaultLimit = 100
	maxLimit     = 1000
)

// Record is a decoded indexed event.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Seq        int64             `json:"seq"`
	Type       string            `json:"type"`
	ProductID  *uint64           `json:"productId,omitempty"`
	Holder     string            `json:"holder,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Indexer persists committed events so claim history and product activity can
// be queried without replaying state.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq int64
}

// New resumes sequencing from the highest stored record.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var maxSeq int64
	if err := db.Model(&models.EventRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	return &Indexer{db: db, logger: logger, now: time.Now, seq: maxSeq}, nil
}

// Emit implements events.Emitter. Failures are logged and counted but never
// propagated; the state change has already committed.
func (i *Indexer) Emit(evt events.Event) {
	if i == nil || evt == nil {
		return
	}
	payload := events.Unwrap(evt)
	attrs := map[string]string{}
	if payload != nil {
		attrs = payload.Clone().Attributes
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		i.drop(evt.EventType(), err)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	record := models.EventRecord{
		ID:         uuid.New(),
		Seq:        i.seq + 1,
		Type:       evt.EventType(),
		ProductID:  productID(attrs),
		Holder:     holderOf(attrs),
		Attributes: string(encoded),
		CreatedAt:  i.now().UTC(),
	}
	if err := i.db.Create(&record).Error; err != nil {
		i.drop(record.Type, err)
		return
	}
	i.seq = record.Seq
}

func (i *Indexer) drop(eventType string, err error) {
	observability.Events().RecordDropped(sinkName)
	i.logger.Error("index event failed", "event", eventType, "error", err)
}

// ProductEvents returns the events of a product in commit order, starting
// after the supplied sequence number.
func (i *Indexer) ProductEvents(ctx context.Context, id uint64, after int64, limit int) ([]Record, error) {
	var rows []models.EventRecord
	err := i.db.WithContext(ctx).
		Where("product_id = ? AND seq > ?", id, after).
		Order("seq ASC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decode(rows)
}

// HolderClaims returns the settled claims of a holder, newest first.
func (i *Indexer) HolderClaims(ctx context.Context, holder common.Address, limit int) ([]Record, error) {
	var rows []models.EventRecord
	err := i.db.WithContext(ctx).
		Where("type = ? AND holder = ?", bond.EventTypeClaimed, holder.Hex()).
		Order("seq DESC").
		Limit(clampLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decode(rows)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func decode(rows []models.EventRecord) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("indexer: decode record %s: %w", row.ID, err)
			}
		}
		out = append(out, Record{
			ID:         row.ID,
			Seq:        row.Seq,
			Type:       row.Type,
			ProductID:  row.ProductID,
			Holder:     row.Holder,
			Attributes: attrs,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func productID(attrs map[string]string) *uint64 {
	raw := strings.TrimSpace(attrs["id"])
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// holderOf picks the account whose history the event belongs to.
func holderOf(attrs map[string]string) string {
	for _, key := range []string{"holder", "to", "recipient"} {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return v
		}
	}
	return ""
}
