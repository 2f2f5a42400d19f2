package dto

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AdminLogQuery struct {
	Level  string `query:"level"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}
