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

// PostMessage stores a message under its room and then bumps the room in the
// ledger. The two writes are not transactional: when the bump fails the
// message is already stored and the error is returned anyway.
func (c *Client) PostMessage(ctx context.Context, roomID, body, senderID, senderName string, ts time.Time) (domain.Message, error) {
	if err := validateID(attrRoomID, roomID); err != nil {
		return domain.Message{}, err
	}
	if err := validateID(attrSenderID, senderID); err != nil {
		return domain.Message{}, err
	}
	if body == "" {
		return domain.Message{}, &domain.Error{Kind: domain.ErrorValidation, Reason: "empty message", Field: attrBody}
	}

	msg := domain.Message{
		ID:         FormatTimestamp(ts),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
	}
	item, err := messageToItem(msg)
	if err != nil {
		return domain.Message{}, err
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.Messages),
		Item:      item,
	})
	if err != nil {
		return domain.Message{}, storageError("put_message", fmt.Errorf("repository: PostMessage: %w", err))
	}

	if err := c.ledger.Bump(ctx, roomID); err != nil {
		c.logger.WarnContext(ctx, "message stored but room not bumped", "room_id", roomID, "message_id", msg.ID, "err", err)
		return msg, fmt.Errorf("repository: PostMessage bump: %w", err)
	}
	return msg, nil
}

// GetMessageByID looks up a single message by its timestamp id.
func (c *Client) GetMessageByID(ctx context.Context, roomID, messageID string) (domain.Message, error) {
	if err := validateID(attrRoomID, roomID); err != nil {
		return domain.Message{}, err
	}
	if messageID == "" {
		return domain.Message{}, &domain.Error{Kind: domain.ErrorValidation, Reason: "empty message id", Field: attrSort}
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tables.Messages),
		Key:       messageKey(roomID, messageID),
	})
	if err != nil {
		return domain.Message{}, storageError("get_message", fmt.Errorf("repository: GetMessageByID: %w", err))
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Message{}, domain.NewError(domain.ErrorNotFound, "message does not exist", nil)
	}

	msg, err := itemToMessage(out.Item)
	if err != nil {
		return domain.Message{}, fmt.Errorf("repository: GetMessageByID decode: %w", err)
	}
	return msg, nil
}

// ListMessages returns up to limit of the latest messages in a room, newest
// first. Only the first page is read. A non-positive limit selects the
// default page size; larger limits are clamped to 100.
func (c *Client) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if err := validateID(attrRoomID, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.opts.messageLimit
	}
	limit = min(limit, maxMessageLimit)

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.Messages),
		KeyConditionExpression: aws.String("room_id = :r AND begins_with(sort, :m)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberN{Value: roomID},
			":m": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so Limit keeps the latest messages.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, storageError("query_messages", fmt.Errorf("repository: ListMessages: %w", err))
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			c.logger.ErrorContext(ctx, "skipping undecodable message", "room_id", roomID, "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
