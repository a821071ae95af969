package models

import (
	"encoding/json"
	"fmt"
)

// TokenPair is one issued session token: the issue time in unix millis and
// the sealed blob that decrypts to salt||rawToken under the master key.
type TokenPair struct {
	IssuedAt int64
	Blob     string
}

// TokenList holds a profile's session tokens. On the wire and in storage
// it is the flat array [issuedAt, blob, issuedAt, blob, ...], so its
// encoded length is always even.
type TokenList []TokenPair

func (t TokenList) MarshalJSON() ([]byte, error) {
	flat := make([]interface{}, 0, len(t)*2)
	for _, p := range t {
		flat = append(flat, p.IssuedAt, p.Blob)
	}
	return json.Marshal(flat)
}

func (t *TokenList) UnmarshalJSON(data []byte) error {
	var flat []json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if len(flat)%2 != 0 {
		return fmt.Errorf("token list has odd length %d", len(flat))
	}
	out := make(TokenList, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		var p TokenPair
		if err := json.Unmarshal(flat[i], &p.IssuedAt); err != nil {
			return fmt.Errorf("token list entry %d: %w", i, err)
		}
		if err := json.Unmarshal(flat[i+1], &p.Blob); err != nil {
			return fmt.Errorf("token list entry %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	*t = out
	return nil
}

// Profile is the full user document held by the store.
type Profile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Nickname   string    `json:"nickname"`
	Password   string    `json:"password"`
	Tokens     TokenList `json:"tokens"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio"`
	Background string    `json:"background"`
	Created    int64     `json:"created"`
	Projects   []string  `json:"projects"`
	IsAdmin    bool      `json:"isAdmin,omitempty"`
}

// Credential is the authentication projection of a Profile kept in the
// in-memory credential cache.
type Credential struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Nickname string    `json:"nickname"`
	Password string    `json:"password"`
	Tokens   TokenList `json:"tokens"`
}

// CredentialOf projects a profile into its credential record.
func CredentialOf(p *Profile) *Credential {
	return &Credential{
		ID:       p.ID,
		Username: p.Username,
		Nickname: p.Nickname,
		Password: p.Password,
		Tokens:   append(TokenList(nil), p.Tokens...),
	}
}

// PublicProfile strips authentication material before a profile document
// is handed to clients.
type PublicProfile struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Nickname   string   `json:"nickname"`
	Avatar     string   `json:"avatar"`
	Bio        string   `json:"bio"`
	Background string   `json:"background"`
	Created    int64    `json:"created"`
	Projects   []string `json:"projects"`
	IsAdmin    bool     `json:"isAdmin,omitempty"`
}

// Public returns the client-safe view of p.
func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:         p.ID,
		Username:   p.Username,
		Nickname:   p.Nickname,
		Avatar:     p.Avatar,
		Bio:        p.Bio,
		Background: p.Background,
		Created:    p.Created,
		Projects:   p.Projects,
		IsAdmin:    p.IsAdmin,
	}
}
