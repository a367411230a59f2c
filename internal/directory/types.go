package directory

// Identity is an immutable snapshot of a directory account as returned by
// the external search. It is never mutated locally.
type Identity struct {
	Handle      string `json:"handle"`       // sAMAccountName, the stable key
	DisplayName string `json:"display_name"`
	DN          string `json:"dn"` // distinguishedName
	Enabled     bool   `json:"enabled"`
}

// Label renders the identity the way the chat transport presents choices.
func (id Identity) Label() string {
	if id.DisplayName == "" {
		return id.Handle
	}
	return id.DisplayName + " / " + id.Handle
}
