package ai

import (
	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
)

// BuildInput 是构造问答请求所需的全部输入。
type BuildInput struct {
	// Persona 前端传入的选择器，空值表示默认 persona。
	Persona string
	// Profile 只有用户保存过资料时才非空。
	Profile *chat.Profile
	History []chat.Message
	Text    string
	// Image 可选的 data URI。
	Image string
}

// Build 把 persona、资料、历史与新输入合并成经过校验的问答请求。
// 任何校验失败都返回 ValidationError，此时不会发起外部调用。
func Build(in BuildInput) (*flow.AnswerRequest, error) {
	id, err := persona.Parse(in.Persona)
	if err != nil {
		return nil, err
	}

	if in.Image != "" && !flow.IsDataURI(in.Image) {
		return nil, apperror.Invalid("image", "must be a data URI of the form data:<mimetype>;base64,<data>")
	}

	req := &flow.AnswerRequest{
		Question:     in.Text,
		ImageDataURI: in.Image,
		Persona:      id,
		UserProfile:  projectProfile(in.Profile),
		History:      projectHistory(in.History),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// projectHistory 只保留 role 与 content，引用与图片仅用于渲染。
func projectHistory(messages []chat.Message) []flow.Turn {
	if len(messages) == 0 {
		return nil
	}
	turns := make([]flow.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, flow.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func projectProfile(p *chat.Profile) *flow.UserProfile {
	if p == nil {
		return nil
	}
	return &flow.UserProfile{
		Age:         p.Age,
		Lifestyle:   p.Lifestyle,
		HealthGoals: p.HealthGoals,
	}
}
