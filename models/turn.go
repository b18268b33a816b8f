package models

// Role identifies who produced a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one message in a session's conversation log.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
