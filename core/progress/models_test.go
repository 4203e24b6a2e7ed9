package progress

import "testing"

func TestMerge(t *testing.T) {
	tests := []struct {
		name          string
		prev          Progress
		rp            RecordProgress
		wantPercent   int
		wantCompleted bool
	}{
		{name: "first reading", rp: RecordProgress{ProgressPercent: 40}, wantPercent: 40},
		{name: "clamped above", rp: RecordProgress{ProgressPercent: 140}, wantPercent: 100, wantCompleted: true},
		{name: "clamped below", rp: RecordProgress{ProgressPercent: -3}, wantPercent: 0},
		{name: "never goes backwards", prev: Progress{ProgressPercent: 60}, rp: RecordProgress{ProgressPercent: 20}, wantPercent: 60},
		{name: "explicit completion", prev: Progress{ProgressPercent: 60}, rp: RecordProgress{ProgressPercent: 70, IsCompleted: true}, wantPercent: 100, wantCompleted: true},
		{name: "never un-completes", prev: Progress{ProgressPercent: 100, IsCompleted: true}, rp: RecordProgress{ProgressPercent: 10}, wantPercent: 100, wantCompleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge(tt.prev, tt.rp)
			if got.ProgressPercent != tt.wantPercent || got.IsCompleted != tt.wantCompleted {
				t.Errorf("merge() = (%d, %v), want (%d, %v)", got.ProgressPercent, got.IsCompleted, tt.wantPercent, tt.wantCompleted)
			}
		})
	}
}

func TestCoursePercent(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 66},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := coursePercent(tt.completed, tt.total); got != tt.want {
			t.Errorf("coursePercent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}
