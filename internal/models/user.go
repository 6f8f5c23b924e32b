package models

// User is the public profile owned by the authentication subsystem.
type User struct {
	ID        string `db:"id" json:"user_id"`
	Email     string `db:"email" json:"email"`
	FullName  string `db:"full_name" json:"full_name"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// DisplayName falls back to the email when no name is set.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
