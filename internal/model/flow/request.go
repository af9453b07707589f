package flow

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
)

// MinRitualPreferences 仪式偏好描述的最少字符数。
const MinRitualPreferences = 10

// RitualRequest 个性化仪式生成请求。
type RitualRequest struct {
	Preferences         string `json:"preferences"`
	HistoricalPractices string `json:"historicalPractices,omitempty"`
	ScientificInsights  string `json:"scientificInsights,omitempty"`
}

func (r RitualRequest) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Preferences)) < MinRitualPreferences {
		return apperror.Invalid("preferences", "please describe your preferences in a bit more detail")
	}
	return nil
}

// PlanRequest 每日计划生成请求，来自用户已保存的资料。
type PlanRequest struct {
	HealthGoals string `json:"healthGoals"`
	Preferences string `json:"preferences"`
	Lifestyle   string `json:"lifestyle,omitempty"`
}

func (r PlanRequest) Validate() error {
	if strings.TrimSpace(r.HealthGoals) == "" {
		return apperror.Invalid("healthGoals", "is required, complete your profile first")
	}
	if strings.TrimSpace(r.Preferences) == "" {
		return apperror.Invalid("preferences", "is required, complete your profile first")
	}
	return nil
}

// Turn 是发送给问答 flow 的历史消息，只包含角色与文本。
type Turn struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// UserProfile 问答请求附带的个性化信息。
type UserProfile struct {
	Age         string `json:"age,omitempty"`
	Lifestyle   string `json:"lifestyle,omitempty"`
	HealthGoals string `json:"healthGoals,omitempty"`
}

// AnswerRequest 问答 flow 的输入。
type AnswerRequest struct {
	Question     string       `json:"question"`
	ImageDataURI string       `json:"imageDataUri,omitempty"`
	Persona      persona.ID   `json:"persona"`
	UserProfile  *UserProfile `json:"userProfile,omitempty"`
	History      []Turn       `json:"history,omitempty"`
}

// Validate checks the request against the question answering input schema.
func (r AnswerRequest) Validate() error {
	if !r.Persona.Valid() {
		return apperror.Invalid("persona", "must be one of holistic, medical, sanatana, ayurveda")
	}
	if strings.TrimSpace(r.Question) == "" && r.ImageDataURI == "" {
		return apperror.Invalid("question", "is required when no image is attached")
	}
	if r.ImageDataURI != "" && !IsDataURI(r.ImageDataURI) {
		return apperror.Invalid("imageDataUri", "must be a data URI of the form data:<mimetype>;base64,<data>")
	}
	for _, turn := range r.History {
		if !turn.Role.Valid() {
			return apperror.Invalid("history", "contains an unknown role "+string(turn.Role))
		}
	}
	return nil
}

var dataURIPattern = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+);base64,`)

// IsDataURI reports whether s carries a well-formed media type tag.
// 只检查标签格式，不校验内容。
func IsDataURI(s string) bool {
	return dataURIPattern.MatchString(s)
}

// SplitDataURI returns the media type and the base64 payload of a data URI.
func SplitDataURI(s string) (mimeType, payload string, ok bool) {
	loc := dataURIPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", "", false
	}
	return s[loc[2]:loc[3]], s[loc[1]:], true
}
