package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-api/internal/domain"
)

const (
	attrRoomID     = "room_id"
	attrSort       = "sort"
	attrName       = "name"
	attrSenderID   = "sender_id"
	attrSenderName = "sender_name"
	attrBody       = "body"
	attrRoomIDs    = "room_ids"
	attrUserID     = "user_id"

	skRoom        = "room"
	skPrefixMsg   = "message."
	skActiveRooms = "active_rooms"

	// ledgerPK is the partition holding the active rooms ledger.
	ledgerPK = "1"

	nameIndex = "name-index"

	maxIDDigits = 38
)

// TimestampLayout is RFC3339 with a fixed-width fraction, so the lexicographic
// order of message sort keys matches their chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders ts as a message id.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

type roomItem struct {
	RoomID attributevalue.Number `dynamodbav:"room_id"`
	Sort   string                `dynamodbav:"sort"`
	Name   string                `dynamodbav:"name"`
}

type messageItem struct {
	RoomID     attributevalue.Number `dynamodbav:"room_id"`
	Sort       string                `dynamodbav:"sort"`
	SenderID   attributevalue.Number `dynamodbav:"sender_id"`
	SenderName string                `dynamodbav:"sender_name"`
	Body       string                `dynamodbav:"body"`
}

type ledgerItem struct {
	RoomID  attributevalue.Number `dynamodbav:"room_id"`
	Sort    string                `dynamodbav:"sort"`
	RoomIDs string                `dynamodbav:"room_ids"`
}

type userItem struct {
	UserID attributevalue.Number `dynamodbav:"user_id"`
	Name   string                `dynamodbav:"name"`
}

// msgSK returns the sort key of a message.
func msgSK(messageID string) string {
	return skPrefixMsg + messageID
}

func roomKey(roomID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrRoomID: &types.AttributeValueMemberN{Value: roomID},
		attrSort:   &types.AttributeValueMemberS{Value: skRoom},
	}
}

func messageKey(roomID, messageID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrRoomID: &types.AttributeValueMemberN{Value: roomID},
		attrSort:   &types.AttributeValueMemberS{Value: msgSK(messageID)},
	}
}

func ledgerKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrRoomID: &types.AttributeValueMemberN{Value: ledgerPK},
		attrSort:   &types.AttributeValueMemberS{Value: skActiveRooms},
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberN{Value: userID},
	}
}

func roomToItem(room domain.Room) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(roomItem{
		RoomID: attributevalue.Number(room.ID),
		Sort:   skRoom,
		Name:   room.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: encode room: %w", err)
	}
	return item, nil
}

func messageToItem(msg domain.Message) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(messageItem{
		RoomID:     attributevalue.Number(msg.RoomID),
		Sort:       msgSK(msg.ID),
		SenderID:   attributevalue.Number(msg.SenderID),
		SenderName: msg.SenderName,
		Body:       msg.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: encode message: %w", err)
	}
	return item, nil
}

func ledgerToItem(roomIDs string) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(ledgerItem{
		RoomID:  attributevalue.Number(ledgerPK),
		Sort:    skActiveRooms,
		RoomIDs: roomIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: encode ledger: %w", err)
	}
	return item, nil
}

func userToItem(user domain.User) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(userItem{
		UserID: attributevalue.Number(user.ID),
		Name:   user.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: encode user: %w", err)
	}
	return item, nil
}

// itemToRoom decodes a room row. Batch reads project only room_id and name,
// so the sort key is not required here.
func itemToRoom(item map[string]types.AttributeValue) (domain.Room, error) {
	id, err := numAttr(item, attrRoomID)
	if err != nil {
		return domain.Room{}, err
	}
	name, err := strAttr(item, attrName)
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{ID: id, Name: name}, nil
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	roomID, err := numAttr(item, attrRoomID)
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, attrSort)
	if err != nil {
		return domain.Message{}, err
	}
	if !strings.HasPrefix(sk, skPrefixMsg) {
		return domain.Message{}, &domain.Error{
			Kind:   domain.ErrorTypeMismatch,
			Reason: "sort key is not a message key",
			Field:  attrSort,
			Item:   item,
		}
	}
	senderID, err := numAttr(item, attrSenderID)
	if err != nil {
		return domain.Message{}, err
	}
	senderName, err := strAttr(item, attrSenderName)
	if err != nil {
		return domain.Message{}, err
	}
	body, err := strAttr(item, attrBody)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         sk[len(skPrefixMsg):],
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       body,
	}, nil
}

func itemToUser(item map[string]types.AttributeValue) (domain.User, error) {
	id, err := numAttr(item, attrUserID)
	if err != nil {
		return domain.User{}, err
	}
	name, err := strAttr(item, attrName)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: id, Name: name}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", missingField(item, key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", typeMismatch(item, key, "string")
	}
	return s.Value, nil
}

// numAttr returns the raw decimal text of a number attribute. Identifiers are
// kept as strings because they exceed the range of int64.
func numAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", missingField(item, key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return "", typeMismatch(item, key, "number")
	}
	return n.Value, nil
}

func missingField(item map[string]types.AttributeValue, key string) error {
	return &domain.Error{
		Kind:   domain.ErrorFieldMissing,
		Reason: "missing attribute",
		Field:  key,
		Item:   item,
	}
}

func typeMismatch(item map[string]types.AttributeValue, key, want string) error {
	return &domain.Error{
		Kind:   domain.ErrorTypeMismatch,
		Reason: fmt.Sprintf("attribute is not a %s", want),
		Field:  key,
		Item:   item,
	}
}

// validateID checks that id can be stored as a DynamoDB number key.
func validateID(field, id string) error {
	if id == "" {
		return &domain.Error{Kind: domain.ErrorValidation, Reason: "empty identifier", Field: field}
	}
	if len(id) > maxIDDigits {
		return &domain.Error{Kind: domain.ErrorValidation, Reason: "identifier too long", Field: field}
	}
	if len(id) > 1 && id[0] == '0' {
		// DynamoDB normalizes numbers, so "042" would read back as "42".
		return &domain.Error{Kind: domain.ErrorValidation, Reason: "identifier has leading zeros", Field: field}
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return &domain.Error{Kind: domain.ErrorValidation, Reason: "identifier is not numeric", Field: field}
		}
	}
	return nil
}

func storageError(reason string, err error) error {
	return domain.NewError(domain.ErrorStorage, reason, err)
}
