package services

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	refPosting    = "TXN"
	refWithdrawal = "WDR"
	refReward     = "RWD"
	refOverride   = "INSTR"
)

// ReferenceGenerator hands out unique, time-sortable transaction reference
// numbers such as TXN-01HZX3M4K5Q8B2N6V7W9Y0Z1A2.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ReferenceGenerator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return prefix + "-" + ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
