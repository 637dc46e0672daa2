package app

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	RoomIDAlphabet = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	RoomIDLength   = 6

	DefaultIDBudget = time.Second
)

var ErrCollisionBudgetExceeded = errors.New("room id collision budget exceeded")

var alphabetSize = big.NewInt(int64(len(RoomIDAlphabet)))

// RandomRoomID draws RoomIDLength characters from RoomIDAlphabet.
func RandomRoomID() domain.RoomID {
	b := make([]byte, RoomIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			panic(err)
		}
		b[i] = RoomIDAlphabet[n.Int64()]
	}
	return domain.RoomID(b)
}

// IDGenerator redraws on collision until Budget is spent.
type IDGenerator struct {
	Budget time.Duration
	Now    func() time.Time
	Draw   func() domain.RoomID
}

func NewIDGenerator(budget time.Duration) *IDGenerator {
	if budget <= 0 {
		budget = DefaultIDBudget
	}
	return &IDGenerator{Budget: budget, Now: time.Now, Draw: RandomRoomID}
}

// Generate returns the first candidate for which exists reports false.
// When the budget runs out it returns the last candidate together with
// ErrCollisionBudgetExceeded; the id is still usable, creation re-checks.
func (g *IDGenerator) Generate(exists func(domain.RoomID) bool) (domain.RoomID, error) {
	start := g.Now()
	tries := 0
	for {
		id := g.Draw()
		tries++
		if !exists(id) {
			return id, nil
		}
		if g.Now().Sub(start) >= g.Budget {
			log.Warn().
				Str("module", "app.idgen").
				Str("room", string(id)).
				Int("tries", tries).
				Msg("room id collision budget exhausted")
			return id, ErrCollisionBudgetExceeded
		}
	}
}
