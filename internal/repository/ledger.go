package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const roomIDSeparator = ","

// RoomLedger records which rooms are active and in what order.
type RoomLedger interface {
	// Bump moves roomID to the most recent position, creating the ledger if
	// it does not exist yet.
	Bump(ctx context.Context, roomID string) error

	// List returns the recorded room ids in storage order, oldest bump first.
	List(ctx context.Context) ([]string, error)
}

// Ledger is the default RoomLedger. It keeps the ordering as a single
// comma-separated string attribute on one item, newest id last.
//
// Bump is an unguarded read-modify-write: two concurrent bumps may both read
// the same value and the later write drops the earlier bump. Callers accept
// that; a lost bump is resolved by the next message posted to the room.
type Ledger struct {
	api    dynamodbAPI
	table  string
	logger *slog.Logger
}

// NewLedger creates a Ledger stored in table.
func NewLedger(api dynamodbAPI, table string, logger *slog.Logger) (*Ledger, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("repository: ledger table name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{api: api, table: table, logger: logger}, nil
}

func (l *Ledger) Bump(ctx context.Context, roomID string) error {
	if err := validateID(attrRoomID, roomID); err != nil {
		return err
	}

	current, err := l.load(ctx)
	if err != nil {
		return fmt.Errorf("repository: Bump: %w", err)
	}
	next := bumpRoomIDs(current, roomID)

	item, err := ledgerToItem(next)
	if err != nil {
		return err
	}
	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      item,
	})
	if err != nil {
		return storageError("ledger_write", fmt.Errorf("repository: Bump: %w", err))
	}

	l.logger.DebugContext(ctx, "room bumped", "room_id", roomID, "ledger_size", strings.Count(next, roomIDSeparator)+1)
	return nil
}

func (l *Ledger) List(ctx context.Context) ([]string, error) {
	raw, err := l.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: List: %w", err)
	}
	return splitRoomIDs(raw), nil
}

// load returns the raw ledger value, or "" when the ledger item does not exist.
// The read is strongly consistent so a bump sees every earlier bump.
func (l *Ledger) load(ctx context.Context) (string, error) {
	out, err := l.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(l.table),
		Key:                  ledgerKey(),
		ProjectionExpression: aws.String(attrRoomIDs),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return "", storageError("ledger_read", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", nil
	}
	return strAttr(out.Item, attrRoomIDs)
}

// splitRoomIDs parses a ledger value. Empty tokens from stray separators are
// dropped, and when an id repeats only its last (most recent) position is kept.
func splitRoomIDs(raw string) []string {
	tokens := strings.Split(raw, roomIDSeparator)
	seen := make(map[string]struct{}, len(tokens))
	ids := make([]string, 0, len(tokens))
	for i := len(tokens) - 1; i >= 0; i-- {
		id := strings.TrimSpace(tokens[i])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	slices.Reverse(ids)
	return ids
}

// bumpRoomIDs removes roomID from the ledger value and appends it at the end.
// Matching is by whole token, so bumping "1" leaves "12" alone.
func bumpRoomIDs(raw, roomID string) string {
	ids := slices.DeleteFunc(splitRoomIDs(raw), func(id string) bool {
		return id == roomID
	})
	return strings.Join(append(ids, roomID), roomIDSeparator)
}
