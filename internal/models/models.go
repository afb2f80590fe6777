package models

import (
	"regexp"
	"strings"
	"time"
)

type User struct {
	ID             int64      `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	Password       string     `json:"-" db:"password"`
	Language       string     `json:"language" db:"language"`
	Region         string     `json:"region" db:"region"`
	ProfilePicture string     `json:"profilePicture" db:"profile_picture"`
	Games          []string   `json:"games" db:"games"`
	CurrentGame    string     `json:"currentGame" db:"current_game"`
	CurrentGameID  string     `json:"currentGameId" db:"current_game_id"`
	LastActive     *time.Time `json:"lastActive" db:"last_active"`
	IsAdmin        bool       `json:"isAdmin" db:"is_admin"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}

// Content types stored on a message.
const (
	ContentText  = "text"
	ContentImage = "image"
)

var imageMarkdown = regexp.MustCompile(`^!\[[^\]]*\]\([^)\s]+\)$`)

// ContentTypeOf tags content written as a markdown image reference as an image,
// everything else as text.
func ContentTypeOf(content string) string {
	if imageMarkdown.MatchString(strings.TrimSpace(content)) {
		return ContentImage
	}
	return ContentText
}

// ImageMarkdown renders an image reference the way ContentTypeOf recognises it.
func ImageMarkdown(url string) string {
	return "![image](" + url + ")"
}

// Message is either direct (RecipientID set) or group (GroupID set), never both.
type Message struct {
	ID          int64      `json:"id" db:"id"`
	SenderID    int64      `json:"fromUserId" db:"sender_id"`
	RecipientID *int64     `json:"toUserId,omitempty" db:"recipient_id"`
	GroupID     *int64     `json:"groupId,omitempty" db:"group_id"`
	Content     string     `json:"content" db:"content"`
	ContentType string     `json:"contentType" db:"content_type"`
	CreatedAt   time.Time  `json:"timestamp" db:"created_at"`
	IsRead      bool       `json:"isRead" db:"is_read"`
	ReadAt      *time.Time `json:"readAt" db:"read_at"`
}

type Group struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"ownerId" db:"owner_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type GroupMember struct {
	GroupID  int64     `json:"groupId" db:"group_id"`
	UserID   int64     `json:"userId" db:"user_id"`
	Username string    `json:"username" db:"username"`
	IsAdmin  bool      `json:"isAdmin" db:"is_admin"`
	JoinedAt time.Time `json:"joinedAt" db:"joined_at"`
}

type Game struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Genre       string    `json:"genre" db:"genre"`
	Platform    string    `json:"platform" db:"platform"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Idea struct {
	ID          int64     `json:"id" db:"id"`
	AuthorID    int64     `json:"authorId" db:"author_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Votes       int64     `json:"votes" db:"votes"`
	Voted       bool      `json:"voted" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Stats struct {
	Users          int64 `json:"users"`
	ActiveUsers    int64 `json:"activeUsers"`
	Messages       int64 `json:"messages"`
	MessagesLast24 int64 `json:"messagesLast24h"`
	Groups         int64 `json:"groups"`
	Games          int64 `json:"games"`
	Ideas          int64 `json:"ideas"`
}

// Request/Response structures
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Language string `json:"language"`
	Region   string `json:"region"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UpdateUserRequest carries only the fields a PATCH wants to change.
type UpdateUserRequest struct {
	Language       *string   `json:"language"`
	Region         *string   `json:"region"`
	ProfilePicture *string   `json:"profilePicture"`
	Games          *[]string `json:"games"`
	CurrentGame    *string   `json:"currentGame"`
	CurrentGameID  *string   `json:"currentGameId"`
}

type UserFilter struct {
	Search   string
	Language string
	Region   string
	Game     string
	Limit    int
	Offset   int
}

type GameFilter struct {
	Search string
	Genre  string
	Limit  int
	Offset int
}

type CreateGroupRequest struct {
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
}

type MemberRequest struct {
	UserID int64 `json:"userId"`
}

type TransferOwnershipRequest struct {
	NewOwnerID int64 `json:"newOwnerId"`
}

type GameRequest struct {
	Name        string `json:"name"`
	Genre       string `json:"genre"`
	Platform    string `json:"platform"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

type IdeaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type VoteResponse struct {
	IdeaID int64 `json:"ideaId"`
	Votes  int64 `json:"votes"`
	Voted  bool  `json:"voted"`
}

type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}
