// Package auth resolves request identities from bearer tokens and manages
// token issuance, rotation and expiry against the credential cache.
package auth

import (
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"codeshare/pkg/logger"
	"codeshare/pkg/models"
	"codeshare/pkg/security"
	"codeshare/pkg/store"
)

const (
	// TokenLen is the length of issued raw tokens.
	TokenLen = 32
	// TokenTTL is how long an issued token stays valid.
	TokenTTL = 7 * 24 * time.Hour
)

// Authenticator owns the in-memory credential cache. It is loaded once at
// startup and kept in sync with every mutation; the durable profile
// documents are written behind.
type Authenticator struct {
	mu    sync.RWMutex
	creds map[string]*models.Credential
}

// New returns an empty authenticator; call Load to warm it.
func New() *Authenticator {
	return &Authenticator{creds: map[string]*models.Credential{}}
}

// Load warms the credential cache from every stored profile.
func (a *Authenticator) Load() error {
	profiles, err := store.ListProfiles()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range profiles {
		a.creds[p.ID] = models.CredentialOf(p)
	}
	logger.Info("credentials_loaded", "count", len(a.creds))
	return nil
}

// Register adds a freshly signed-up profile to the cache.
func (a *Authenticator) Register(p *models.Profile) {
	a.mu.Lock()
	a.creds[p.ID] = models.CredentialOf(p)
	a.mu.Unlock()
}

// UpdateNames keeps the cache in sync with a profile rename.
func (a *Authenticator) UpdateNames(id, username, nickname string) {
	a.mu.Lock()
	if c, ok := a.creds[id]; ok {
		if username != "" {
			c.Username = username
		}
		if nickname != "" {
			c.Nickname = nickname
		}
	}
	a.mu.Unlock()
}

// FindByUsername returns the credential with the exact username, or nil.
func (a *Authenticator) FindByUsername(username string) *models.Credential {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.creds {
		if c.Username == username {
			return c
		}
	}
	return nil
}

// FindByID returns the credential for an id, or nil.
func (a *Authenticator) FindByID(id string) *models.Credential {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds[id]
}

// UsernameTaken reports whether a username is already registered,
// compared case-insensitively.
func (a *Authenticator) UsernameTaken(username string) bool {
	lower := strings.ToLower(username)
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.creds {
		if strings.ToLower(c.Username) == lower {
			return true
		}
	}
	return false
}

// ResolveIdentity returns the profile owning cookieToken, fetched fresh
// from the store, or nil for anonymous. A blob that fails to unseal is a
// non-match, never an error: a missing master key simply degrades every
// lookup to anonymous.
func (a *Authenticator) ResolveIdentity(cookieToken string) *models.Profile {
	if cookieToken == "" {
		return nil
	}
	id := a.findTokenOwner(cookieToken)
	if id == "" {
		return nil
	}
	p, err := store.GetProfile(id)
	if err != nil {
		logger.Warn("profile_load_failed", "user", id, "error", err)
		return nil
	}
	return p
}

func (a *Authenticator) findTokenOwner(cookieToken string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for id, c := range a.creds {
		for _, pair := range c.Tokens {
			pt, err := security.Open(pair.Blob)
			if err != nil || len(pt) <= security.SaltLen {
				continue
			}
			if string(pt[security.SaltLen:]) == cookieToken {
				return id
			}
		}
	}
	return ""
}

// CheckPassword compares the stored hash against hash(salt+supplied) in
// constant time.
func (a *Authenticator) CheckPassword(c *models.Credential, salt, supplied string) bool {
	want := security.Digest(salt + supplied)
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(want)) == 1
}

// IssueToken generates a raw token, seals salt+token under the master
// key and appends the pair to both the profile and the credential cache.
// The updated profile is persisted behind.
func (a *Authenticator) IssueToken(p *models.Profile, salt string) (string, error) {
	raw, err := security.Token(TokenLen)
	if err != nil {
		return "", err
	}
	blob, err := security.Seal([]byte(salt + raw))
	if err != nil {
		return "", err
	}
	pair := models.TokenPair{IssuedAt: time.Now().UnixMilli(), Blob: blob}
	p.Tokens = append(p.Tokens, pair)

	a.mu.Lock()
	if c, ok := a.creds[p.ID]; ok {
		c.Tokens = append(c.Tokens, pair)
	}
	a.mu.Unlock()

	saved := *p
	store.Enqueue("save_profile", func() error { return store.SaveProfile(&saved) })
	return raw, nil
}

// PruneExpired removes every token pair older than TokenTTL from the
// profile and the cache; when alsoMatching is non-empty the pair whose
// unsealed suffix equals it is removed too (sign-out). The caller
// persists the profile.
func (a *Authenticator) PruneExpired(p *models.Profile, alsoMatching string) {
	now := time.Now().UnixMilli()
	keep := p.Tokens[:0]
	for _, pair := range p.Tokens {
		if now-pair.IssuedAt > TokenTTL.Milliseconds() {
			continue
		}
		if alsoMatching != "" {
			if pt, err := security.Open(pair.Blob); err == nil &&
				len(pt) > security.SaltLen && string(pt[security.SaltLen:]) == alsoMatching {
				continue
			}
		}
		keep = append(keep, pair)
	}
	p.Tokens = keep

	a.mu.Lock()
	if c, ok := a.creds[p.ID]; ok {
		c.Tokens = append(models.TokenList(nil), keep...)
	}
	a.mu.Unlock()
}
