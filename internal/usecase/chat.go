package usecase

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-api/internal/domain"
)

const (
	defaultMessageLimit = 50
	maxNameLen          = 64
	maxBodyLen          = 4000
	maxIDDigits         = 38
)

// Store is the repository surface the chat service depends on.
type Store interface {
	PostMessage(ctx context.Context, roomID, body, senderID, senderName string, ts time.Time) (domain.Message, error)
	GetMessageByID(ctx context.Context, roomID, messageID string) (domain.Message, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	CreateRoom(ctx context.Context, roomID, name string) (domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (domain.Room, error)
	BumpRoom(ctx context.Context, roomID string) error
	ListActiveRooms(ctx context.Context) ([]domain.Room, error)
	CreateUser(ctx context.Context, userID, name string) (domain.User, error)
	GetUserByID(ctx context.Context, userID string) (domain.User, error)
	GetUserByName(ctx context.Context, name string) (domain.User, error)
	UserExists(ctx context.Context, name string) (bool, error)
}

type ChatService struct {
	store        Store
	messageLimit int
}

type PostMessageInput struct {
	RoomID   string
	SenderID string
	Body     string
}

func NewChatService(s Store, messageLimit int) (*ChatService, error) {
	if s == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if messageLimit <= 0 {
		messageLimit = defaultMessageLimit
	}
	return &ChatService{store: s, messageLimit: messageLimit}, nil
}

// SignUp registers a new user under a name nobody holds yet. The check and
// the write are separate calls, so two simultaneous sign-ups with one name
// can both succeed; GetUserByName reports that as an ambiguous result.
func (s *ChatService) SignUp(ctx context.Context, name string) (domain.User, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.User{}, err
	}

	taken, err := s.store.UserExists(ctx, name)
	if err != nil {
		return domain.User{}, err
	}
	if taken {
		return domain.User{}, newValidationError("name_taken")
	}
	return s.store.CreateUser(ctx, newID(), name)
}

func (s *ChatService) SignIn(ctx context.Context, name string) (domain.User, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.User{}, err
	}
	return s.store.GetUserByName(ctx, name)
}

func (s *ChatService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.store.GetUserByID(ctx, lastSegment(userID))
}

// PostMessage stores a message from a registered user in an existing room and
// moves the room to the top of the room listing. The sender may be given as a
// bare id or as a user URI ending in the id.
func (s *ChatService) PostMessage(ctx context.Context, in PostMessageInput) (domain.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return domain.Message{}, newValidationError("empty_message")
	}
	if len(body) > maxBodyLen {
		return domain.Message{}, newValidationError("message_too_long")
	}
	senderID := lastSegment(in.SenderID)
	if senderID == "" {
		return domain.Message{}, newValidationError("invalid_sender_id")
	}

	// The ledger must only ever name rooms that exist.
	room, err := s.store.GetRoom(ctx, lastSegment(in.RoomID))
	if err != nil {
		return domain.Message{}, err
	}
	sender, err := s.store.GetUserByID(ctx, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	return s.store.PostMessage(ctx, room.ID, body, sender.ID, sender.Name, now())
}

func (s *ChatService) GetMessage(ctx context.Context, roomID, messageID string) (domain.Message, error) {
	return s.store.GetMessageByID(ctx, roomID, lastSegment(messageID))
}

// ListMessages returns the latest messages in a room, newest first.
func (s *ChatService) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = s.messageLimit
	}
	return s.store.ListMessages(ctx, roomID, limit)
}

// CreateRoom creates a room under a fresh id and lists it as the most recent
// room.
func (s *ChatService) CreateRoom(ctx context.Context, name string) (domain.Room, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.Room{}, err
	}
	room, err := s.store.CreateRoom(ctx, newID(), name)
	if err != nil {
		return domain.Room{}, err
	}
	if err := s.store.BumpRoom(ctx, room.ID); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *ChatService) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.store.ListActiveRooms(ctx)
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newValidationError("empty_name")
	}
	if len(name) > maxNameLen {
		return "", newValidationError("name_too_long")
	}
	return name, nil
}

// lastSegment strips everything up to the last slash, so ids may be passed as
// resource URIs.
func lastSegment(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func newValidationError(reason string) *domain.Error {
	return domain.NewError(domain.ErrorValidation, reason, nil)
}

// newID returns a random decimal identifier that fits a DynamoDB number.
var newID = func() string {
	u := uuid.New()
	digits := new(big.Int).SetBytes(u[:]).String()
	if len(digits) > maxIDDigits {
		digits = digits[:maxIDDigits]
	}
	return digits
}

var now = func() time.Time {
	return time.Now().UTC()
}
