// Package tradeno generates and parses merchant trade numbers.
//
// Layout: <rail tag:3><YYYYMMDDhhmmss:14><random:6><user id>.
package tradeno

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"vpsBack/internal/models"
)

const (
	tagLen    = 3
	stampLen  = 14
	randLen   = 6
	stampForm = "20060102150405"
	minLen    = tagLen + stampLen + randLen + 1
)

// Generator is safe for concurrent use.
type Generator struct {
	loc *time.Location
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator seeds the disambiguator source from crypto/rand.
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.Local
	}
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
	}
	return &Generator{
		loc: loc,
		now: time.Now,
		rnd: rand.New(rand.NewSource(binary.LittleEndian.Uint64(seed[:]))),
	}
}

// New returns a fresh trade id for the given rail and user.
func (g *Generator) New(tag models.RailTag, userID int) string {
	g.mu.Lock()
	n := 100000 + g.rnd.Intn(900000)
	g.mu.Unlock()
	return fmt.Sprintf("%s%s%06d%d", tag, g.now().In(g.loc).Format(stampForm), n, userID)
}

// Rail recovers the rail tag from a trade id.
func Rail(tradeID string) (models.RailTag, error) {
	if len(tradeID) < minLen {
		return "", fmt.Errorf("trade id %q: too short", tradeID)
	}
	tag := models.RailTag(tradeID[:tagLen])
	if !tag.Valid() {
		return "", fmt.Errorf("trade id %q: %w", tradeID, models.ErrUnknownRail)
	}
	return tag, nil
}

// CreatedAt recovers the generation time encoded in a trade id.
func CreatedAt(tradeID string, loc *time.Location) (time.Time, error) {
	if len(tradeID) < minLen {
		return time.Time{}, fmt.Errorf("trade id %q: too short", tradeID)
	}
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(stampForm, tradeID[tagLen:tagLen+stampLen], loc)
}

// UserID recovers the user id suffix.
func UserID(tradeID string) (int, error) {
	if len(tradeID) < minLen {
		return 0, fmt.Errorf("trade id %q: too short", tradeID)
	}
	return strconv.Atoi(tradeID[tagLen+stampLen+randLen:])
}
