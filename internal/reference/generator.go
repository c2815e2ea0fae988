// Package reference generates application reference numbers handed to the
// regulator. References are ULIDs wrapped with organisation and period
// context, so they sort by creation time and never collide across nodes.
package reference

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/packflow/internal/clock"
)

type Generator interface {
	ApplicationReference(organisationID snowflake.ID, period string) string
}

type ulidGenerator struct {
	clock clock.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewGenerator(c clock.Clock) Generator {
	return &ulidGenerator{
		clock:   c,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ulidGenerator) ApplicationReference(organisationID snowflake.ID, period string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy)
	g.mu.Unlock()

	return fmt.Sprintf("PF-%s-%s-%s", sanitizePeriod(period), organisationID.Base36(), id.String())
}

func sanitizePeriod(period string) string {
	period = strings.ToUpper(strings.TrimSpace(period))
	period = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, period)
	if period == "" {
		return "NA"
	}
	return period
}
