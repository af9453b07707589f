package chat

import "time"

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message 是会话中的一条消息，追加后不再修改。
// Image 保存用户上传图片的 data URI，References 为回答引用的来源。
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	References []string  `json:"references,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasImage reports whether an image payload is attached.
func (m Message) HasImage() bool {
	return m.Image != ""
}
