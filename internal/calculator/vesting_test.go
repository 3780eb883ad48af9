package calculator

import (
	"math"
	"testing"
)

func TestVested(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		now      int64
		want     int64
	}{
		{
			name:     "before start",
			schedule: Linear(100, 1000, 10),
			now:      999,
			want:     0,
		},
		{
			name:     "at start",
			schedule: Linear(100, 1000, 10),
			now:      1000,
			want:     0,
		},
		{
			name:     "halfway",
			schedule: Linear(100, 1000, 10),
			now:      1005,
			want:     50,
		},
		{
			name:     "rounds down",
			schedule: Linear(2491, 0, 30),
			now:      1,
			want:     83, // 2491/30 = 83.03
		},
		{
			name:     "at end",
			schedule: Linear(2491, 0, 30),
			now:      30,
			want:     2491,
		},
		{
			name:     "past end",
			schedule: Linear(2491, 0, 30),
			now:      3000,
			want:     2491,
		},
		{
			name:     "checkpointed schedule starts from base",
			schedule: Schedule{Value: 4995, Base: 250, From: 5, End: 100},
			now:      5,
			want:     250,
		},
		{
			name:     "checkpointed schedule vests remainder",
			schedule: Schedule{Value: 4995, Base: 250, From: 5, End: 100},
			now:      52,
			want:     250 + (4745*47)/95,
		},
		{
			name:     "no overflow on huge values",
			schedule: Linear(math.MaxInt64, 0, 4),
			now:      3,
			want:     6917529027641081855, // floor(3*(2^63-1)/4)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.schedule.Validate(); err != nil {
				t.Fatalf("invalid schedule: %v", err)
			}
			got := Vested(tt.schedule, tt.now)
			if got != tt.want {
				t.Errorf("Vested(%+v, %d) = %d, want %d", tt.schedule, tt.now, got, tt.want)
			}
		})
	}
}

func TestVestedIsNonDecreasing(t *testing.T) {
	s := Linear(2491, 100, 30)
	prev := int64(0)
	for now := int64(90); now <= 140; now++ {
		got := Vested(s, now)
		if got < prev {
			t.Fatalf("vesting decreased at %d: %d < %d", now, got, prev)
		}
		if got > s.Value {
			t.Fatalf("vesting %d exceeds value %d at %d", got, s.Value, now)
		}
		prev = got
	}
}

func TestScheduleValidate(t *testing.T) {
	bad := []Schedule{
		{Value: -1, From: 0, End: 1},
		{Value: 10, Base: 11, From: 0, End: 1},
		{Value: 10, From: 5, End: 5},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", s)
		}
	}
}
