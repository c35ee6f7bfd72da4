package numerator

// Strategy selects how sequence values are taken from storage.
type Strategy int

const (
	// StrategyStrict takes one value per call with UPDATE ... RETURNING.
	// Numbers are gapless unless the caller's transaction rolls back.
	StrategyStrict Strategy = iota

	// StrategyCached reserves RangeSize values at once and hands them out
	// from memory. A restart loses the unused part of the range.
	StrategyCached
)

// Options tunes a single GetNextNumber call.
type Options struct {
	Strategy Strategy
	// RangeSize applies to StrategyCached. Default is 50.
	RangeSize int64
}

// DefaultOptions returns strict numbering.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// ResetPeriod controls when a sequence restarts from 1.
type ResetPeriod string

const (
	ResetNever   ResetPeriod = "never"
	ResetYearly  ResetPeriod = "year"
	ResetMonthly ResetPeriod = "month"
)

// Config describes the shape of a number such as PR-2026-00001.
// PadWidth is the minimum width of the sequence part (default 5).
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int
	ResetPeriod ResetPeriod
}

// DefaultConfig numbers per prefix, restarting every calendar year.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: ResetYearly,
	}
}
