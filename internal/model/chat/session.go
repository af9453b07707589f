package chat

import "time"

// DefaultTitle 新建会话在收到第一条用户消息前使用的标题。
const DefaultTitle = "New Chat"

// ImageOnlyTitle 第一条用户消息只有图片时使用的标题。
const ImageOnlyTitle = "Image Message"

// Session captures one persisted conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
