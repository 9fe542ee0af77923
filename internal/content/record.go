// Package content turns raw per-game content directories into validated,
// sanitized GameRecords. All text fields are HTML-escaped, all URLs pass
// the scheme allow-list, and all image references resolve inside the
// site's content root before a record is handed to the build pipeline.
package content

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strconv"
)

// Rating is a deterministic review snippet for a game page. When the
// content author does not supply one it is derived from the game id, so
// rebuilding never changes it.
type Rating struct {
	Value float64 `yaml:"value"`
	Count int     `yaml:"count"`
}

// GameRecord is the validated, sanitized form of one game's content.
// Immutable once created; safe to share across workers.
type GameRecord struct {
	ID          string
	Title       string
	Description string
	EmbedURL    string
	HeroImage   string // resolved absolute path inside the content root, or empty
	Tags        []string
	BodyHTML    string // rendered long-form body, markup-safe
	Rating      Rating
}

// Fields returns the record's sanitized fields in a fixed order for
// canonical fingerprint framing. Any new field must be appended here or
// cache entries would survive content changes.
func (r *GameRecord) Fields() []string {
	fields := []string{
		r.ID, r.Title, r.Description, r.EmbedURL, r.HeroImage, r.BodyHTML,
		strconv.FormatFloat(r.Rating.Value, 'f', -1, 64),
		strconv.Itoa(r.Rating.Count),
	}

	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	sort.Strings(tags)

	return append(fields, tags...)
}

// DeriveRating produces the deterministic fallback rating for a game id:
// value in [3.0, 5.0] with one decimal, count in [250, 5250].
func DeriveRating(id string) Rating {
	sum := sha256.Sum256([]byte(id))
	h := binary.BigEndian.Uint32(sum[:4])

	value := 3.0 + float64(h%200)/100.0
	if value > 5.0 {
		value = 5.0
	}

	return Rating{
		Value: float64(int(value*10)) / 10,
		Count: 250 + int(h%5001),
	}
}
