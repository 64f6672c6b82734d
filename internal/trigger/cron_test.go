package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

func mustCompile(t *testing.T, cfg domain.CronConfig) *CronSchedule {
	t.Helper()
	sched, err := CompileCron(cfg)
	require.NoError(t, err)
	return sched
}

func TestCronNext(t *testing.T) {
	tests := []struct {
		name  string
		cfg   domain.CronConfig
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily at 09:30, same day",
			cfg:   domain.CronConfig{Hour: "9", Minute: "30"},
			after: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "daily at 09:30 rolls to next day",
			cfg:   domain.CronConfig{Hour: "9", Minute: "30"},
			after: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "smallest set field zeroes finer fields",
			cfg:   domain.CronConfig{Hour: "12"},
			after: time.Date(2026, 3, 10, 12, 0, 1, 0, time.UTC),
			want:  time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "step minutes",
			cfg:   domain.CronConfig{Minute: "*/15"},
			after: time.Date(2026, 3, 10, 10, 7, 30, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 10, 15, 0, 0, time.UTC),
		},
		{
			name:  "comma list of hours",
			cfg:   domain.CronConfig{Hour: "9,15", Minute: "0"},
			after: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "day range",
			cfg:   domain.CronConfig{Day: "1-3", Hour: "6"},
			after: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC),
		},
		{
			name:  "day of week name, Monday based",
			cfg:   domain.CronConfig{DayOfWeek: "mon", Hour: "9"},
			after: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC), // Wednesday
			want:  time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),  // next Monday
		},
		{
			name:  "numeric day of week, 0 is Monday",
			cfg:   domain.CronConfig{DayOfWeek: "0", Hour: "9"},
			after: time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso week constraint",
			cfg:   domain.CronConfig{Week: "2", DayOfWeek: "mon", Hour: "9"},
			after: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "fixed date rolls over year boundary",
			cfg:   domain.CronConfig{Year: "2027", Month: "1", Day: "1"},
			after: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "every second within a minute",
			cfg:   domain.CronConfig{Second: "*/30"},
			after: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 10, 0, 30, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := mustCompile(t, tt.cfg)
			got, ok := sched.Next(tt.after, time.UTC)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronNextExhausted(t *testing.T) {
	sched := mustCompile(t, domain.CronConfig{Year: "2027", Month: "1", Day: "1"})

	_, ok := sched.Next(time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.False(t, ok, "a past fixed year can never fire again")
}

func TestCronNextHonorsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	sched := mustCompile(t, domain.CronConfig{Hour: "9", Minute: "30"})

	// 09:30 Eastern in January is 14:30 UTC.
	after := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	got, ok := sched.Next(after, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC), got)
}

func TestCompileCronInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.CronConfig
	}{
		{"empty config", domain.CronConfig{}},
		{"hour out of range", domain.CronConfig{Hour: "24"}},
		{"garbage literal", domain.CronConfig{Minute: "bananas"}},
		{"bad step", domain.CronConfig{Minute: "*/0"}},
		{"inverted range", domain.CronConfig{Day: "9-3"}},
		{"unknown weekday name", domain.CronConfig{DayOfWeek: "noday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCron(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidCronField)
		})
	}
}

func TestParseCronFieldForms(t *testing.T) {
	f, err := parseCronField("1,3,5-7", 0, 59, nil)
	require.NoError(t, err)
	for _, v := range []int{1, 3, 5, 6, 7} {
		assert.True(t, f.matches(v), "expected %d to match", v)
	}
	for _, v := range []int{0, 2, 4, 8} {
		assert.False(t, f.matches(v), "expected %d not to match", v)
	}
}
