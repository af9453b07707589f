package chat

// Profile 用户资料，所有字段都是自由文本。
type Profile struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Age         string `json:"age"`
	Lifestyle   string `json:"lifestyle"`
	Preferences string `json:"preferences"`
	HealthGoals string `json:"healthGoals"`
}

// DefaultProfile is shown until the user saves their own profile.
func DefaultProfile() Profile {
	return Profile{
		Name:        "Alex Doe",
		Email:       "alex.doe@example.com",
		Age:         "30",
		Lifestyle:   "",
		Preferences: "Prefers morning yoga, interested in stress reduction techniques, and enjoys guided meditation.",
		HealthGoals: "Improve sleep quality, reduce stress, build a consistent fitness routine.",
	}
}

// CanPlan reports whether the profile carries what the daily plan flow needs.
func (p Profile) CanPlan() bool {
	return p.HealthGoals != "" && p.Preferences != ""
}
