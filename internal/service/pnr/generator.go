package pnr

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	Prefix             = "PNR"
	SuffixLength       = 6
	DefaultMaxAttempts = 5

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// suffixSpace is len(alphabet)^SuffixLength.
	suffixSpace uint64 = 36 * 36 * 36 * 36 * 36 * 36
	// The top two bits of the UUID's second half hold the variant.
	randomMask  uint64 = 1<<62 - 1
	randomLimit uint64 = (randomMask + 1) - (randomMask+1)%suffixSpace
)

// CodeChecker looks a code up in storage. Pass the enclosing transaction so the
// check and the insert that follows see the same snapshot.
type CodeChecker interface {
	BookingCodeExists(ctx context.Context, code string) (bool, error)
}

type GeneratorUseCase interface {
	Generate(ctx context.Context, checker CodeChecker) (string, error)
}

type Generator struct {
	maxAttempts int
	entropy     func() (uuid.UUID, error)
	log         *logrus.Logger
}

type GeneratorOption func(*Generator)

func WithMaxAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithEntropy replaces the random source.
func WithEntropy(fn func() (uuid.UUID, error)) GeneratorOption {
	return func(g *Generator) {
		g.entropy = fn
	}
}

func WithLogger(log *logrus.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = log
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		maxAttempts: DefaultMaxAttempts,
		entropy:     uuid.NewRandom,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a code that the checker has not seen. A unique index in
// storage remains the final arbiter for codes raced by concurrent inserts.
func (g *Generator) Generate(ctx context.Context, checker CodeChecker) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.candidate()
		if err != nil {
			return "", fmt.Errorf("generate booking code: %w", err)
		}

		exists, err := checker.BookingCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check booking code: %w", err)
		}
		if !exists {
			return code, nil
		}

		g.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"code":    code,
		}).Warn("booking code collision")
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrCodeGenerationExhausted, g.maxAttempts)
}

func (g *Generator) candidate() (string, error) {
	var v uint64
	for {
		id, err := g.entropy()
		if err != nil {
			return "", err
		}
		v = binary.BigEndian.Uint64(id[8:]) & randomMask
		if v < randomLimit {
			break
		}
	}
	return Prefix + encode(v%suffixSpace), nil
}

// encode writes v in base len(alphabet), most significant digit first.
func encode(v uint64) string {
	buf := make([]byte, SuffixLength)
	for i := SuffixLength - 1; i >= 0; i-- {
		buf[i] = alphabet[v%uint64(len(alphabet))]
		v /= uint64(len(alphabet))
	}
	return string(buf)
}

// Valid reports whether code has the booking code shape.
func Valid(code string) bool {
	if len(code) != len(Prefix)+SuffixLength || code[:len(Prefix)] != Prefix {
		return false
	}
	for _, c := range code[len(Prefix):] {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

var _ GeneratorUseCase = (*Generator)(nil)
