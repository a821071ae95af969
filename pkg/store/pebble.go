package store

import (
	"encoding/json"
	"fmt"

	"codeshare/pkg/logger"
	"codeshare/pkg/models"

	"github.com/cockroachdb/pebble"
)

var db *pebble.DB

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = pebble.ErrNotFound

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func saltKey(id string) []byte  { return []byte("salt:" + id) }
func userKey(id string) []byte  { return []byte("user:" + id) }
func aboutKey(id string) []byte { return []byte("program:" + id + ":about") }
func filesKey(id string) []byte { return []byte("program:" + id + ":files") }
func thumbKey(id string) []byte { return []byte("program:" + id + ":img") }
func ipKey(hash string) []byte  { return []byte("ip:" + hash) }

func getRaw(key []byte) ([]byte, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, nil
}

func setRaw(key, val []byte) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Set(key, val, pebble.Sync)
}

func setJSON(key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return setRaw(key, b)
}

// SetSalt stores a user's password/token salt.
func SetSalt(id, salt string) error {
	return setRaw(saltKey(id), []byte(salt))
}

// GetSalt returns a user's salt.
func GetSalt(id string) (string, error) {
	v, err := getRaw(saltKey(id))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// SaveProfile writes the full user document.
func SaveProfile(p *models.Profile) error {
	if err := setJSON(userKey(p.ID), p); err != nil {
		logger.Error("save_profile_failed", "user", p.ID, "error", err)
		return err
	}
	return nil
}

// GetProfile loads a user document by id.
func GetProfile(id string) (*models.Profile, error) {
	v, err := getRaw(userKey(id))
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("invalid profile document %s: %w", id, err)
	}
	return &p, nil
}

// ListProfiles iterates every user document; used once at startup to warm
// the credential cache.
func ListProfiles() ([]*models.Profile, error) {
	var out []*models.Profile
	err := iterPrefix("user:", func(_ string, val []byte) error {
		var p models.Profile
		if err := json.Unmarshal(val, &p); err != nil {
			// one corrupt document must not block startup
			logger.Error("skip_corrupt_profile", "error", err)
			return nil
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

// SaveProgram writes a program's metadata document. File contents and the
// thumbnail travel separately; they are stripped here.
func SaveProgram(p *models.Program) error {
	doc := *p
	doc.Files = nil
	doc.Img = ""
	if err := setJSON(aboutKey(p.ID), &doc); err != nil {
		logger.Error("save_program_failed", "program", p.ID, "error", err)
		return err
	}
	return nil
}

// GetProgram loads a program's metadata document.
func GetProgram(id string) (*models.Program, error) {
	v, err := getRaw(aboutKey(id))
	if err != nil {
		return nil, err
	}
	var p models.Program
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("invalid program document %s: %w", id, err)
	}
	return &p, nil
}

// ProgramExists reports whether a program id is taken.
func ProgramExists(id string) (bool, error) {
	_, err := getRaw(aboutKey(id))
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveProgramFiles stores a program's file map.
func SaveProgramFiles(id string, files map[string]string) error {
	return setJSON(filesKey(id), files)
}

// GetProgramFiles loads a program's file map.
func GetProgramFiles(id string) (map[string]string, error) {
	v, err := getRaw(filesKey(id))
	if err != nil {
		return nil, err
	}
	var files map[string]string
	if err := json.Unmarshal(v, &files); err != nil {
		return nil, fmt.Errorf("invalid program files %s: %w", id, err)
	}
	return files, nil
}

// SaveProgramThumb stores a program's thumbnail JPEG bytes.
func SaveProgramThumb(id string, jpeg []byte) error {
	return setRaw(thumbKey(id), jpeg)
}

// GetProgramThumb loads a program's thumbnail.
func GetProgramThumb(id string) ([]byte, error) {
	return getRaw(thumbKey(id))
}

// DeleteProgram removes a program's metadata, files and thumbnail.
func DeleteProgram(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	for _, k := range [][]byte{aboutKey(id), filesKey(id), thumbKey(id)} {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return err
		}
	}
	return nil
}

// ListPrograms iterates every program metadata document; the ranking
// engine rebuilds its views from this.
func ListPrograms() ([]*models.Program, error) {
	var out []*models.Program
	err := iterPrefix("program:", func(key string, val []byte) error {
		if len(key) < len(":about") || key[len(key)-len(":about"):] != ":about" {
			return nil
		}
		var p models.Program
		if err := json.Unmarshal(val, &p); err != nil {
			logger.Error("skip_corrupt_program", "key", key, "error", err)
			return nil
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

// SaveIPRecord persists one anonymized-IP record.
func SaveIPRecord(hash string, rec *models.IPRecord) error {
	return setJSON(ipKey(hash), rec)
}

// ListIPRecords loads every persisted IP record; request counts are
// zeroed by the limiter on load.
func ListIPRecords() (map[string]*models.IPRecord, error) {
	out := map[string]*models.IPRecord{}
	err := iterPrefix("ip:", func(key string, val []byte) error {
		var rec models.IPRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			logger.Error("skip_corrupt_ip_record", "error", err)
			return nil
		}
		out[key[len("ip:"):]] = &rec
		return nil
	})
	return out, err
}

func iterPrefix(prefix string, fn func(key string, val []byte) error) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	lower := []byte(prefix)
	upper := append(append([]byte(nil), prefix...), 0xff)
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := fn(string(it.Key()), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}
