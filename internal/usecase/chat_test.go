package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-api/internal/domain"
)

type mockStore struct {
	users       map[string]domain.User
	exists      bool
	existsErr   error
	byNameErr   error
	createErr   error
	bumpErr     error
	postErr     error
	rooms       []domain.Room
	messages    []domain.Message
	listLimit   int
	posted      []domain.Message
	postedAt    time.Time
	createdRoom domain.Room
	bumped      []string
	createdUser domain.User
}

func newMockStore() *mockStore {
	return &mockStore{users: map[string]domain.User{}}
}

func (m *mockStore) PostMessage(_ context.Context, roomID, body, senderID, senderName string, ts time.Time) (domain.Message, error) {
	if m.postErr != nil {
		return domain.Message{}, m.postErr
	}
	msg := domain.Message{ID: ts.Format(time.RFC3339), RoomID: roomID, SenderID: senderID, SenderName: senderName, Body: body}
	m.posted = append(m.posted, msg)
	m.postedAt = ts
	return msg, nil
}

func (m *mockStore) GetMessageByID(_ context.Context, roomID, messageID string) (domain.Message, error) {
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.ID == messageID {
			return msg, nil
		}
	}
	return domain.Message{}, domain.NewError(domain.ErrorNotFound, "message does not exist", nil)
}

func (m *mockStore) ListMessages(_ context.Context, _ string, limit int) ([]domain.Message, error) {
	m.listLimit = limit
	return m.messages, nil
}

func (m *mockStore) CreateRoom(_ context.Context, roomID, name string) (domain.Room, error) {
	if m.createErr != nil {
		return domain.Room{}, m.createErr
	}
	m.createdRoom = domain.Room{ID: roomID, Name: name}
	return m.createdRoom, nil
}

func (m *mockStore) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	for _, r := range m.rooms {
		if r.ID == roomID {
			return r, nil
		}
	}
	return domain.Room{}, domain.NewError(domain.ErrorNotFound, "room does not exist", nil)
}

func (m *mockStore) BumpRoom(_ context.Context, roomID string) error {
	if m.bumpErr != nil {
		return m.bumpErr
	}
	m.bumped = append(m.bumped, roomID)
	return nil
}

func (m *mockStore) ListActiveRooms(_ context.Context) ([]domain.Room, error) {
	return m.rooms, nil
}

func (m *mockStore) CreateUser(_ context.Context, userID, name string) (domain.User, error) {
	if m.createErr != nil {
		return domain.User{}, m.createErr
	}
	m.createdUser = domain.User{ID: userID, Name: name}
	m.users[userID] = m.createdUser
	return m.createdUser, nil
}

func (m *mockStore) GetUserByID(_ context.Context, userID string) (domain.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return domain.User{}, domain.NewError(domain.ErrorNotFound, "user does not exist", nil)
	}
	return u, nil
}

func (m *mockStore) GetUserByName(_ context.Context, name string) (domain.User, error) {
	if m.byNameErr != nil {
		return domain.User{}, m.byNameErr
	}
	for _, u := range m.users {
		if u.Name == name {
			return u, nil
		}
	}
	return domain.User{}, domain.NewError(domain.ErrorNotFound, "user does not exist", nil)
}

func (m *mockStore) UserExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func newTestService(t *testing.T, s Store) *ChatService {
	t.Helper()
	svc, err := NewChatService(s, 0)
	require.NoError(t, err)
	return svc
}

func expectKind(t *testing.T, err error, kind domain.ErrorKind, reason string) {
	t.Helper()
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, kind, domainErr.Kind)
	if reason != "" {
		require.Equal(t, reason, domainErr.Reason)
	}
}

func fixIDs(t *testing.T, ids ...string) {
	t.Helper()
	orig := newID
	t.Cleanup(func() { newID = orig })
	newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

func fixNow(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return ts }
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	_, err := NewChatService(nil, 10)
	require.Error(t, err)
}

func TestSignUp_HappyPath(t *testing.T) {
	fixIDs(t, "123")
	store := newMockStore()
	svc := newTestService(t, store)

	user, err := svc.SignUp(context.Background(), "  ada ")
	require.NoError(t, err)
	require.Equal(t, domain.User{ID: "123", Name: "ada"}, user)
	require.Equal(t, user, store.createdUser)
}

func TestSignUp_NameTaken(t *testing.T) {
	store := newMockStore()
	store.exists = true
	svc := newTestService(t, store)

	_, err := svc.SignUp(context.Background(), "ada")
	expectKind(t, err, domain.ErrorValidation, "name_taken")
	require.Empty(t, store.createdUser.ID)
}

func TestSignUp_Validation(t *testing.T) {
	svc := newTestService(t, newMockStore())

	_, err := svc.SignUp(context.Background(), "   ")
	expectKind(t, err, domain.ErrorValidation, "empty_name")

	_, err = svc.SignUp(context.Background(), strings.Repeat("a", maxNameLen+1))
	expectKind(t, err, domain.ErrorValidation, "name_too_long")
}

func TestSignUp_LookupFailure(t *testing.T) {
	store := newMockStore()
	store.existsErr = domain.NewError(domain.ErrorStorage, "query_user_name", errors.New("boom"))
	svc := newTestService(t, store)

	_, err := svc.SignUp(context.Background(), "ada")
	expectKind(t, err, domain.ErrorStorage, "")
}

func TestSignIn(t *testing.T) {
	store := newMockStore()
	store.users["7"] = domain.User{ID: "7", Name: "ada"}
	svc := newTestService(t, store)

	user, err := svc.SignIn(context.Background(), "ada")
	require.NoError(t, err)
	require.Equal(t, "7", user.ID)

	_, err = svc.SignIn(context.Background(), "nobody")
	expectKind(t, err, domain.ErrorNotFound, "")

	store.byNameErr = domain.NewError(domain.ErrorAmbiguousResult, "user name matches more than one user", nil)
	_, err = svc.SignIn(context.Background(), "ada")
	expectKind(t, err, domain.ErrorAmbiguousResult, "")
}

func TestGetUser_AcceptsURI(t *testing.T) {
	store := newMockStore()
	store.users["7"] = domain.User{ID: "7", Name: "ada"}
	svc := newTestService(t, store)

	user, err := svc.GetUser(context.Background(), "http://api/users/7")
	require.NoError(t, err)
	require.Equal(t, "ada", user.Name)
}

func TestPostMessage_HappyPath(t *testing.T) {
	ts := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	fixNow(t, ts)
	store := newMockStore()
	store.users["7"] = domain.User{ID: "7", Name: "ada"}
	store.rooms = []domain.Room{{ID: "42", Name: "general"}}
	svc := newTestService(t, store)

	msg, err := svc.PostMessage(context.Background(), PostMessageInput{RoomID: "42", SenderID: "http://api/users/7", Body: " hi "})
	require.NoError(t, err)
	require.Equal(t, "ada", msg.SenderName)
	require.Equal(t, "7", msg.SenderID)
	require.Equal(t, "hi", msg.Body)
	require.Equal(t, ts, store.postedAt)
	require.Equal(t, "42", msg.RoomID)
}

func TestPostMessage_UnknownRoom(t *testing.T) {
	store := newMockStore()
	store.users["7"] = domain.User{ID: "7", Name: "ada"}
	svc := newTestService(t, store)

	_, err := svc.PostMessage(context.Background(), PostMessageInput{RoomID: "999", SenderID: "7", Body: "hi"})
	expectKind(t, err, domain.ErrorNotFound, "room does not exist")
	require.Empty(t, store.posted)
	require.Empty(t, store.bumped)
}

func TestPostMessage_Validation(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.PostMessage(ctx, PostMessageInput{RoomID: "42", SenderID: "7", Body: "  "})
	expectKind(t, err, domain.ErrorValidation, "empty_message")

	_, err = svc.PostMessage(ctx, PostMessageInput{RoomID: "42", SenderID: "7", Body: strings.Repeat("x", maxBodyLen+1)})
	expectKind(t, err, domain.ErrorValidation, "message_too_long")

	_, err = svc.PostMessage(ctx, PostMessageInput{RoomID: "42", SenderID: "http://api/users/", Body: "hi"})
	expectKind(t, err, domain.ErrorValidation, "invalid_sender_id")

	require.Empty(t, store.posted)
}

func TestPostMessage_UnknownSender(t *testing.T) {
	store := newMockStore()
	store.rooms = []domain.Room{{ID: "42", Name: "general"}}
	svc := newTestService(t, store)

	_, err := svc.PostMessage(context.Background(), PostMessageInput{RoomID: "42", SenderID: "7", Body: "hi"})
	expectKind(t, err, domain.ErrorNotFound, "")
	require.Empty(t, store.posted)
}

func TestCreateRoom_CreatesThenBumps(t *testing.T) {
	fixIDs(t, "555")
	store := newMockStore()
	svc := newTestService(t, store)

	room, err := svc.CreateRoom(context.Background(), "general")
	require.NoError(t, err)
	require.Equal(t, domain.Room{ID: "555", Name: "general"}, room)
	require.Equal(t, []string{"555"}, store.bumped)
}

func TestCreateRoom_BumpFailure(t *testing.T) {
	fixIDs(t, "555")
	store := newMockStore()
	store.bumpErr = domain.NewError(domain.ErrorStorage, "ledger_write", errors.New("boom"))
	svc := newTestService(t, store)

	_, err := svc.CreateRoom(context.Background(), "general")
	expectKind(t, err, domain.ErrorStorage, "ledger_write")
	require.Equal(t, "555", store.createdRoom.ID)
}

func TestCreateRoom_CreateFailureSkipsBump(t *testing.T) {
	store := newMockStore()
	store.createErr = domain.NewError(domain.ErrorStorage, "put_room", errors.New("boom"))
	svc := newTestService(t, store)

	_, err := svc.CreateRoom(context.Background(), "general")
	expectKind(t, err, domain.ErrorStorage, "put_room")
	require.Empty(t, store.bumped)
}

func TestListMessages_DefaultLimit(t *testing.T) {
	store := newMockStore()
	svc := newTestService(t, store)

	_, err := svc.ListMessages(context.Background(), "42", 0)
	require.NoError(t, err)
	require.Equal(t, defaultMessageLimit, store.listLimit)

	_, err = svc.ListMessages(context.Background(), "42", 5)
	require.NoError(t, err)
	require.Equal(t, 5, store.listLimit)
}

func TestGetMessage_AcceptsURI(t *testing.T) {
	store := newMockStore()
	store.messages = []domain.Message{{ID: "2023-01-01T00:00:00Z", RoomID: "42"}}
	svc := newTestService(t, store)

	msg, err := svc.GetMessage(context.Background(), "42", "http://api/rooms/42/messages/2023-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, "42", msg.RoomID)
}

func TestNewID_Numeric(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := newID()
		require.NotEmpty(t, id)
		require.LessOrEqual(t, len(id), maxIDDigits)
		require.NotEqual(t, byte('0'), id[0])
		for _, r := range id {
			require.True(t, r >= '0' && r <= '9', "id %q is not numeric", id)
		}
	}
}
