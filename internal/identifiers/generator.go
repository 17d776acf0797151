package identifiers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	"github.com/angelmondragon/kartupintar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
)

const (
	trxAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trxSuffixLen    = 6
	unbiasedLimit   = 256 - 256%len(trxAlphabet)
	defaultAttempts = 20
)

// ErrDuplicateIdentifier is returned when no unused identifier could be found
// within the attempt budget.
var ErrDuplicateIdentifier = errors.New("duplicate identifier")

// Generator allocates card and transaction identifiers. Every lookup runs on
// the caller's transaction so the allocation and the insert that uses it
// commit together.
type Generator struct {
	prefix      string
	maxAttempts int
	random      io.Reader
}

// NewGenerator builds a generator from the ledger configuration.
func NewGenerator(cfg config.LedgerConfig) *Generator {
	prefix := strings.ToUpper(strings.TrimSpace(cfg.CardIDPrefix))
	if prefix == "" {
		prefix = "KP"
	}
	attempts := cfg.MaxIDAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Generator{prefix: prefix, maxAttempts: attempts, random: rand.Reader}
}

// WithRandom swaps the random source used for transaction suffixes.
func (g *Generator) WithRandom(r io.Reader) *Generator {
	clone := *g
	clone.random = r
	return &clone
}

// NextCardID returns the next unused PREFIX-YYYY-NNN card id for year.
func (g *Generator) NextCardID(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "transaction required for card id allocation")
	}
	yearPrefix := fmt.Sprintf("%s-%04d-", g.prefix, year)

	if tx.Dialector.Name() == "postgres" {
		if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", yearPrefix).Error; err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock card id sequence")
		}
	}

	var existing []string
	if err := tx.WithContext(ctx).
		Model(&models.Member{}).
		Where("card_id LIKE ?", yearPrefix+"%").
		Pluck("card_id", &existing).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card ids")
	}

	next := highestSequence(existing, yearPrefix) + 1
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%03d", yearPrefix, next)
		taken, err := exists(ctx, tx, &models.Member{}, "card_id", candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		next++
	}
	return "", duplicateErr("card id", g.maxAttempts)
}

// NextTransactionID returns an unused TRX-YYYYMMDD-XXXXXX id for the day of now.
func (g *Generator) NextTransactionID(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "transaction required for transaction id allocation")
	}
	datePart := now.UTC().Format("20060102")
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		suffix, err := g.randomSuffix()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
		}
		candidate := "TRX-" + datePart + "-" + suffix
		taken, err := exists(ctx, tx, &models.Transaction{}, "trx_id", candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", duplicateErr("transaction id", g.maxAttempts)
}

// randomSuffix draws uniformly from trxAlphabet. Bytes at or above
// unbiasedLimit are discarded so every symbol keeps the same odds.
func (g *Generator) randomSuffix() (string, error) {
	out := make([]byte, 0, trxSuffixLen)
	buf := make([]byte, trxSuffixLen)
	for len(out) < trxSuffixLen {
		chunk := buf[:trxSuffixLen-len(out)]
		if _, err := io.ReadFull(g.random, chunk); err != nil {
			return "", err
		}
		for _, b := range chunk {
			if int(b) < unbiasedLimit {
				out = append(out, trxAlphabet[int(b)%len(trxAlphabet)])
			}
		}
	}
	return string(out), nil
}

func highestSequence(ids []string, prefix string) int {
	highest := 0
	for _, id := range ids {
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

func exists(ctx context.Context, tx *gorm.DB, model any, column, value string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(model).Where(column+" = ?", value).Count(&count).Error; err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check "+column)
	}
	return count > 0, nil
}

func duplicateErr(what string, attempts int) error {
	return pkgerrors.Wrap(
		pkgerrors.CodeDuplicateIdentifier,
		ErrDuplicateIdentifier,
		fmt.Sprintf("could not allocate a unique %s after %d attempts", what, attempts),
	)
}
