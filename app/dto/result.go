package dto

// AuthUser is the outward-facing slice of a user record. The password hash
// never leaves the service layer.
type AuthUser struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

type AuthResult struct {
	Success      bool
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         AuthUser
}
