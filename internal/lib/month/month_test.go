package month

import (
	"testing"
	"time"
)

func TestElapsedDays_TableTests(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{
			name: "same moment",
			now:  start,
			want: 0,
		},
		{
			name: "now before start",
			now:  start.Add(-48 * time.Hour),
			want: 0,
		},
		{
			name: "23 hours is not a full day",
			now:  start.Add(23 * time.Hour),
			want: 0,
		},
		{
			name: "exactly 90 days",
			now:  start.AddDate(0, 0, 90),
			want: 90,
		},
		{
			name: "95 days and a few hours",
			now:  start.AddDate(0, 0, 95).Add(5 * time.Hour),
			want: 95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ElapsedDays(tt.now, start)
			if got != tt.want {
				t.Errorf("ElapsedDays(%v, %v) = %d, want %d", tt.now, start, got, tt.want)
			}
		})
	}
}

func TestAddMonths_TableTests(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{
			name: "middle of month",
			in:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of january in leap year",
			in:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of january in regular year",
			in:   time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "year rollover",
			in:   time.Date(2024, 12, 10, 8, 30, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			name: "twelve months",
			in:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			n:    12,
			want: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonths(tt.in, tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}
