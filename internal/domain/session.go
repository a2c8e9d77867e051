package domain

// Session is the signed-in user as the page keeps it in local storage.
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"user_email,omitempty"`
	Role        string `json:"user_role,omitempty"`
	FullName    string `json:"user_full_name,omitempty"`
}

// SignedIn reports whether the session carries both a credential and a user.
func (s Session) SignedIn() bool {
	return s.AccessToken != "" && s.UserID != ""
}
