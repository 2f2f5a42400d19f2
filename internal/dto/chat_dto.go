package dto

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UserPrefs struct {
	Name   string   `json:"name,omitempty"`
	Length string   `json:"length,omitempty"`
	Traits []string `json:"traits,omitempty"`
}

type QueryRequest struct {
	Question  string     `json:"question" validate:"required"`
	Mode      string     `json:"mode,omitempty"` // "help" or "analytics"; empty lets the classifier decide
	SessionId string     `json:"session_id,omitempty"`
	Prefs     *UserPrefs `json:"prefs,omitempty"`
	History   []ChatTurn `json:"history,omitempty"`
}

type QueryResponse struct {
	Reply         string `json:"reply"`
	NavigationURL string `json:"navigation_url,omitempty"`
}

type ApproveEmailRequest struct {
	SessionId string `json:"session_id,omitempty"`
	Approved  bool   `json:"approved"`
}
