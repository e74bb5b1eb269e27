// Package numerator provides document auto-numbering.
// Numbers are allocated with an UPSERT ... RETURNING on a per-key sequence
// row, so generation is atomic under concurrent creates.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Style selects the rendered form of a generated number.
type Style int

const (
	// StylePrefixYear renders PREFIX-YYYY-NNN (РД-2026-001, СМ-2026-014).
	StylePrefixYear Style = iota

	// StyleSeqDate renders {seq}_{DD.MM.YY} (technical proposals).
	StyleSeqDate

	// StyleSuffix renders {base}-{NN}; used for mounting proposals attached
	// to a technical proposal, where base is the TKP number.
	StyleSuffix
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds numbering configuration for one document kind.
type Config struct {
	// Prefix added to the number and used as the sequence key (e.g. "РД", "СМ")
	Prefix string

	// Style of the rendered number
	Style Style

	// PadWidth is the minimum number width (default 3)
	PadWidth int

	// ResetPeriod: "year" or "never"
	ResetPeriod string
}

// DefaultConfig returns the standard yearly prefixed config.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		Style:       StylePrefixYear,
		PadWidth:    3,
		ResetPeriod: "year",
	}
}

// Domain numbering presets.
func FrameworkContractConfig() Config { return DefaultConfig("РД") }
func EstimateConfig() Config          { return DefaultConfig("СМ") }
func MountingEstimateConfig() Config  { return DefaultConfig("МС") }
func MountingProposalConfig() Config  { return DefaultConfig("МП") }

// TechnicalProposalConfig numbers proposals {seq}_{DD.MM.YY} with a
// never-resetting global sequence.
func TechnicalProposalConfig() Config {
	return Config{Prefix: "ТКП", Style: StyleSeqDate, ResetPeriod: "never"}
}

// Service provides document numbering backed by the sys_sequences table.
type Service struct {
	querier Querier
}

// New creates a new numerator service.
func New(querier Querier) *Service {
	return &Service{querier: querier}
}

// GetNextNumber generates the next document number for the config and period.
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	num, err := s.next(ctx, s.buildKey(cfg, period))
	if err != nil {
		return "", err
	}

	return s.formatNumber(cfg, period, num), nil
}

// NextSuffix generates a {base}-{NN} number keyed by the base number itself.
// Used for mounting proposals attached to a technical proposal.
func (s *Service) NextSuffix(ctx context.Context, base string) (string, error) {
	num, err := s.next(ctx, "SFX_"+base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%02d", base, num), nil
}

// next fetches the next value directly from the DB using UPSERT + RETURNING.
// Sequential without gaps; suitable for accounting documents.
func (s *Service) next(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next number: %w", err)
	}
	return num, nil
}

// SetNextNumber sets the sequence value (for migration purposes).
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := s.buildKey(cfg, period)

	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	return err
}

// buildKey creates the sequence key based on config and period.
func (s *Service) buildKey(cfg Config, period time.Time) string {
	if cfg.ResetPeriod == "year" {
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	}
	return cfg.Prefix
}

// formatNumber renders the final number string.
func (s *Service) formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 3
	}

	switch cfg.Style {
	case StyleSeqDate:
		return fmt.Sprintf("%d_%s", num, period.Format("02.01.06"))
	default:
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
}
