package models

// Roles assignable to an identity record. Role is set at account
// creation and never changed by profile edits.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal is an authenticated identity as the identity provider
// reports it, distinct from the denormalized UserRecord kept in the
// document store.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// UserRecord is the denormalized profile document at userData/<uid>.
type UserRecord struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage"`
	CreatedAt    int64  `json:"createdAt"`
	LastLogin    int64  `json:"lastLogin"`
	LastUpdated  int64  `json:"lastUpdated"`
}

// IsAdmin reports whether the record grants admin views.
func (u UserRecord) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserRecordFromMap coerces a raw store payload into a UserRecord,
// defaulting the role so a record never carries an empty one.
func UserRecordFromMap(raw map[string]any) UserRecord {
	var u UserRecord
	if raw == nil {
		return u
	}
	u.UID, _ = raw["uid"].(string)
	u.Email, _ = raw["email"].(string)
	u.Username, _ = raw["username"].(string)
	u.Role, _ = raw["role"].(string)
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.ProfileImage, _ = raw["profileImage"].(string)
	u.CreatedAt = int64Field(raw, "createdAt")
	u.LastLogin = int64Field(raw, "lastLogin")
	u.LastUpdated = int64Field(raw, "lastUpdated")
	return u
}

// ToMap renders the record in the wire shape the store holds.
func (u UserRecord) ToMap() map[string]any {
	return map[string]any{
		"uid":          u.UID,
		"email":        u.Email,
		"username":     u.Username,
		"role":         u.Role,
		"profileImage": u.ProfileImage,
		"createdAt":    u.CreatedAt,
		"lastLogin":    u.LastLogin,
		"lastUpdated":  u.LastUpdated,
	}
}

func int64Field(raw map[string]any, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
