package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-api/internal/domain"
)

const (
	// maxBatchGetKeys is the BatchGetItem per-request key limit.
	maxBatchGetKeys = 100
	maxBatchBackoff = 2 * time.Second
)

// CreateRoom stores a room. It does not bump the room; callers that want the
// room listed call BumpRoom afterwards.
func (c *Client) CreateRoom(ctx context.Context, roomID, name string) (domain.Room, error) {
	if err := validateID(attrRoomID, roomID); err != nil {
		return domain.Room{}, err
	}
	if name == "" {
		return domain.Room{}, &domain.Error{Kind: domain.ErrorValidation, Reason: "empty room name", Field: attrName}
	}

	room := domain.Room{ID: roomID, Name: name}
	item, err := roomToItem(room)
	if err != nil {
		return domain.Room{}, err
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.Messages),
		Item:      item,
	})
	if err != nil {
		return domain.Room{}, storageError("put_room", fmt.Errorf("repository: CreateRoom: %w", err))
	}
	return room, nil
}

// GetRoom looks up a room by id.
func (c *Client) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	if err := validateID(attrRoomID, roomID); err != nil {
		return domain.Room{}, err
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(c.tables.Messages),
		Key:                      roomKey(roomID),
		ProjectionExpression:     aws.String("room_id, #n"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
	})
	if err != nil {
		return domain.Room{}, storageError("get_room", fmt.Errorf("repository: GetRoom: %w", err))
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Room{}, domain.NewError(domain.ErrorNotFound, "room does not exist", nil)
	}

	room, err := itemToRoom(out.Item)
	if err != nil {
		return domain.Room{}, fmt.Errorf("repository: GetRoom decode: %w", err)
	}
	return room, nil
}

// BumpRoom moves the room to the top of the active rooms listing.
func (c *Client) BumpRoom(ctx context.Context, roomID string) error {
	return c.ledger.Bump(ctx, roomID)
}

// ListActiveRooms returns the rooms recorded in the ledger, most recently
// bumped first. Ledger entries whose room row cannot be read yet are skipped.
func (c *Client) ListActiveRooms(ctx context.Context) ([]domain.Room, error) {
	ids, err := c.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: ListActiveRooms: %w", err)
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := validateID(attrRoomID, id); err != nil {
			c.logger.WarnContext(ctx, "ignoring malformed ledger entry", "room_id", id)
			continue
		}
		valid = append(valid, id)
	}
	// BatchGetItem rejects requests without keys.
	if len(valid) == 0 {
		return []domain.Room{}, nil
	}

	found := make(map[string]domain.Room, len(valid))
	for start := 0; start < len(valid); start += maxBatchGetKeys {
		chunk := valid[start:min(start+maxBatchGetKeys, len(valid))]
		items, err := c.batchGetRooms(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			room, err := itemToRoom(item)
			if err != nil {
				c.logger.ErrorContext(ctx, "skipping undecodable room", "err", err)
				continue
			}
			found[room.ID] = room
		}
	}

	rooms := make([]domain.Room, 0, len(found))
	for i := len(valid) - 1; i >= 0; i-- {
		if room, ok := found[valid[i]]; ok {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

// batchGetRooms reads the room rows for ids in one BatchGetItem call,
// re-requesting any keys DynamoDB leaves unprocessed.
func (c *Client) batchGetRooms(ctx context.Context, ids []string) ([]map[string]types.AttributeValue, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, roomKey(id))
	}

	in := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			c.tables.Messages: {
				Keys:                     keys,
				ProjectionExpression:     aws.String("room_id, #n"),
				ExpressionAttributeNames: map[string]string{"#n": attrName},
			},
		},
	}

	var items []map[string]types.AttributeValue
	backoff := c.opts.batchBackoff
	for attempt := 0; ; attempt++ {
		out, err := c.api.BatchGetItem(ctx, in)
		if err != nil {
			return nil, storageError("batch_get_rooms", fmt.Errorf("repository: ListActiveRooms: %w", err))
		}
		items = append(items, out.Responses[c.tables.Messages]...)

		pending, ok := out.UnprocessedKeys[c.tables.Messages]
		if !ok || len(pending.Keys) == 0 {
			return items, nil
		}
		if attempt >= c.opts.batchRetries {
			return nil, storageError("batch_get_unprocessed",
				fmt.Errorf("repository: ListActiveRooms: %d keys unprocessed after %d attempts", len(pending.Keys), attempt+1))
		}

		select {
		case <-ctx.Done():
			return nil, storageError("batch_get_canceled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBatchBackoff)
		in.RequestItems = out.UnprocessedKeys
	}
}
