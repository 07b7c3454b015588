package domain

// Room is a chat room. Rooms are written once and never renamed.
type Room struct {
	ID   string
	Name string
}

// Message is a single chat message. ID is the message timestamp, which is also
// the suffix of its sort key.
type Message struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Body       string
}

// User is a registered chat participant. Name is unique across users.
type User struct {
	ID   string
	Name string
}
