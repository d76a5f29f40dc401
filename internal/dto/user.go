package dto

// LoginRequest is the login form and the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// RegisterRequest is the signup form and the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `form:"username" json:"username" binding:"required,min=1,max=30"`
	Password string `form:"password" json:"password" binding:"required,min=1"`
}

// UserResponse is returned when user info is needed (e.g. after login).
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
