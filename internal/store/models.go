package store

// User is one of the two partner rows of a couple.
type User struct {
	ID            string `json:"id"`
	CoupleID      string `json:"parejaId"`
	Nombre        string `json:"nombre"`
	AvatarURL     string `json:"avatarUrl"`
	UsuarioNumero int    `json:"usuarioNumero"`
}

// UserUpdate carries the user columns to change; nil fields are left as-is.
type UserUpdate struct {
	Nombre    *string
	AvatarURL *string
}

// MoodRow is one mood entry. A user has at most one row per Fecha.
type MoodRow struct {
	ID        string `json:"id"`
	CoupleID  string `json:"parejaId"`
	UserID    string `json:"usuarioId"`
	Fecha     string `json:"fecha"`
	Mood      string `json:"mood"`
	Nota      string `json:"nota"`
	CreatedAt string `json:"createdAt"`
}
