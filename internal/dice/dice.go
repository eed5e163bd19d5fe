// Package dice implements die-descriptor parsing and uniform rolls for
// pending dice checks.
package dice

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultFaces is used when a die descriptor cannot be parsed.
const DefaultFaces = 20

// Faces extracts the face count from a descriptor of the form "d<N>"
// (case-insensitive, surrounding whitespace ignored). Any descriptor that
// does not parse to a positive face count yields DefaultFaces.
func Faces(descriptor string) int {
	d := strings.TrimSpace(strings.ToLower(descriptor))
	if !strings.HasPrefix(d, "d") {
		return DefaultFaces
	}
	n, err := strconv.Atoi(d[1:])
	if err != nil || n <= 0 {
		return DefaultFaces
	}
	return n
}

// Roller produces uniform die results. The zero value is not usable; use New
// or NewSeeded.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Roller seeded from the current time.
func New() *Roller {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a deterministic Roller for the given seed.
func NewSeeded(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns a uniform integer in [1, Faces(descriptor)].
func (r *Roller) Roll(descriptor string) int {
	faces := Faces(descriptor)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(faces) + 1
}
