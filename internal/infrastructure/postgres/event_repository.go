package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

// EventRepository persists task-generation events and resolves the
// location->zone mapping the generation service needs.
type EventRepository struct {
	client *postgres.Client
}

// NewEventRepository creates an event repository
func NewEventRepository(client *postgres.Client) *EventRepository {
	return &EventRepository{client: client}
}

// InsertEvent records one generation event. The unique event key makes the
// insert the idempotency gate: a false return means the key was already
// processed and the caller must skip the event.
func (r *EventRepository) InsertEvent(ctx context.Context, tx pgx.Tx, event *domain.TaskGenerationEvent) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO task_generation_events
		   (id, event_key, event_type, source_document_id, payload, processed_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (event_key) DO NOTHING`,
		uuid.New(), event.EventKey, event.EventType, event.SourceDocumentID, event.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to insert generation event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ZonesForLocations resolves the zone of every given location in one query.
// Locations missing from the result have no zone mapping.
func (r *EventRepository) ZonesForLocations(ctx context.Context, tx pgx.Tx, locationIDs []int64) (map[int64]uuid.UUID, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, zone_id FROM locations WHERE id = ANY($1) AND zone_id IS NOT NULL`,
		locationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve zones for locations: %w", err)
	}
	defer rows.Close()

	zones := make(map[int64]uuid.UUID, len(locationIDs))
	for rows.Next() {
		var locationID int64
		var zoneID uuid.UUID
		if err := rows.Scan(&locationID, &zoneID); err != nil {
			return nil, err
		}
		zones[locationID] = zoneID
	}
	return zones, rows.Err()
}
