package flow

// Flow names used in logs, metrics and ServiceError.
const (
	NameQA     = "qa"
	NameRitual = "ritual"
	NamePlan   = "plan"
	NameTTS    = "tts"
)
