package persona

import (
	"strings"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
)

// ID 是固定枚举的 persona 标识。
type ID string

const (
	Holistic ID = "holistic"
	Medical  ID = "medical"
	Sanatana ID = "sanatana"
	Ayurveda ID = "ayurveda"
)

// Default 未选择 persona 时使用。
const Default = Holistic

// IDs lists the supported personas in display order.
func IDs() []ID {
	return []ID{Holistic, Medical, Sanatana, Ayurveda}
}

// Valid reports whether id is one of the enumerated personas.
func (id ID) Valid() bool {
	switch id {
	case Holistic, Medical, Sanatana, Ayurveda:
		return true
	}
	return false
}

// Parse 解析前端传入的 persona 选择器。空值回落到 Default，
// 未知值返回 ValidationError，不会静默替换成其他 persona。
func Parse(selector string) (ID, error) {
	trimmed := strings.TrimSpace(selector)
	if trimmed == "" {
		return Default, nil
	}
	id := ID(trimmed)
	if !id.Valid() {
		return "", apperror.Invalid("persona", "must be one of holistic, medical, sanatana, ayurveda")
	}
	return id, nil
}

// Persona captures the coaching attributes exposed to the frontend.
type Persona struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Tone        string   `json:"tone"`
	Description string   `json:"description,omitempty"`
	Expertise   []string `json:"expertise,omitempty"`
}

// Seed provides the four coaching personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:          Holistic,
			Name:        "Holistic Wellness Coach",
			Title:       "Holistic Wellness Guru",
			Tone:        "warm, empathetic, encouraging",
			Description: "A wise Rishi who talks like a supportive friend, weaving Vedic teachings together with psychology and modern medicine.",
			Expertise:   []string{"daily rituals", "mindfulness", "Sanatana Dharma", "Ayurveda", "habit building"},
		},
		{
			ID:          Medical,
			Name:        "Medical Professional",
			Title:       "Evidence-based Advisor",
			Tone:        "calm, clear, professional",
			Description: "Grounded in peer-reviewed research from sources like PubMed and WHO. Avoids spiritual advice.",
			Expertise:   []string{"sleep", "stress physiology", "nutrition", "exercise science"},
		},
		{
			ID:          Sanatana,
			Name:        "Sanatana Scholar",
			Title:       "Scholar of Sanatana Dharma",
			Tone:        "articulate, patient, teaching",
			Description: "Explains the Vedas, Upanishads and Puranas, including the roles of Lok Devtas, as if to a curious student.",
			Expertise:   []string{"Vedas", "Upanishads", "Puranas", "Lok Devtas"},
		},
		{
			ID:          Ayurveda,
			Name:        "Ayurvedic Expert",
			Title:       "Vaidya",
			Tone:        "grounded, practical, precise",
			Description: "A seasoned Ayurvedic practitioner focused on doshas, diet and lifestyle.",
			Expertise:   []string{"doshas", "diet", "dinacharya", "Samudra Shastra"},
		},
	}
}

// ExamplePrompts 欢迎页上的示例问题。
func ExamplePrompts() []string {
	return []string{
		"How can I reduce stress right now?",
		"I'm feeling anxious today.",
		"What's a simple morning routine for energy?",
		"आज मैं चिंतित महसूस कर रहा हूँ।",
	}
}
