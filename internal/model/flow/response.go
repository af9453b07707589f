package flow

import (
	"errors"
	"strings"
)

// RitualResponse 仪式生成结果。
type RitualResponse struct {
	RitualDescription  string `json:"ritualDescription"`
	Benefits           string `json:"benefits"`
	TraditionsInvolved string `json:"traditionsInvolved"`
}

func (r RitualResponse) Validate() error {
	if strings.TrimSpace(r.RitualDescription) == "" {
		return errors.New("ritual response missing ritualDescription")
	}
	return nil
}

// PlanSection 每日计划中的一个时段。
type PlanSection struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Activities  []string `json:"activities"`
}

// PlanResponse 每日计划生成结果。
type PlanResponse struct {
	Morning   PlanSection `json:"morning"`
	Afternoon PlanSection `json:"afternoon"`
	Evening   PlanSection `json:"evening"`
}

func (r PlanResponse) Validate() error {
	for name, section := range map[string]PlanSection{"morning": r.Morning, "afternoon": r.Afternoon, "evening": r.Evening} {
		if strings.TrimSpace(section.Title) == "" || len(section.Activities) == 0 {
			return errors.New("plan response missing " + name + " section")
		}
	}
	return nil
}

// AnswerResponse 问答结果，Answer 是 markdown 子集文本。
type AnswerResponse struct {
	Answer     string   `json:"answer"`
	References []string `json:"references,omitempty"`
}

func (r AnswerResponse) Validate() error {
	if strings.TrimSpace(r.Answer) == "" {
		return errors.New("answer response is empty")
	}
	return nil
}
