package models

// UserProfile is the slice of a user's profile the relationship service reads.
type UserProfile struct {
	ID              int64  `db:"id" json:"id"`
	Username        string `db:"username" json:"username"`
	AvatarURL       string `db:"avatar_url" json:"avatar_url"`
	Hidden          bool   `db:"profile_hidden" json:"-"`
	AcceptsRequests bool   `db:"accepts_requests" json:"-"`
}

// PublicAvatar returns the avatar URL unless the profile is hidden.
func (p UserProfile) PublicAvatar() string {
	if p.Hidden {
		return ""
	}
	return p.AvatarURL
}

// UserSummary is what candidate search returns.
type UserSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PrivacySettings is a partial update of a user's privacy flags. Nil fields are left unchanged.
type PrivacySettings struct {
	AcceptsRequests *bool `json:"accepts_requests"`
	ProfileHidden   *bool `json:"profile_hidden"`
}

func (s PrivacySettings) Empty() bool {
	return s.AcceptsRequests == nil && s.ProfileHidden == nil
}
