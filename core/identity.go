package core

// Identity identifies the author of archive snapshots.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
