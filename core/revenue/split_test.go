package revenue

import "testing"

func TestSplit(t *testing.T) {
	tests := []struct {
		name        string
		gross       int64
		percent     int
		wantTeacher int64
		wantAgency  int64
	}{
		{name: "default share", gross: 100000, percent: 70, wantTeacher: 70000, wantAgency: 30000},
		{name: "floored teacher amount", gross: 999, percent: 70, wantTeacher: 699, wantAgency: 300},
		{name: "odd amount", gross: 1, percent: 50, wantTeacher: 0, wantAgency: 1},
		{name: "full share", gross: 25000, percent: 100, wantTeacher: 25000, wantAgency: 0},
		{name: "no share", gross: 25000, percent: 0, wantTeacher: 0, wantAgency: 25000},
		{name: "percent above 100", gross: 500, percent: 150, wantTeacher: 500, wantAgency: 0},
		{name: "negative percent", gross: 500, percent: -5, wantTeacher: 0, wantAgency: 500},
		{name: "zero gross", gross: 0, percent: 70, wantTeacher: 0, wantAgency: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			teacher, agency := Split(tt.gross, tt.percent)
			if teacher != tt.wantTeacher || agency != tt.wantAgency {
				t.Errorf("Split() = (%d, %d), want (%d, %d)", teacher, agency, tt.wantTeacher, tt.wantAgency)
			}
			if tt.gross > 0 && teacher+agency != tt.gross {
				t.Errorf("Split() parts add up to %d, want %d", teacher+agency, tt.gross)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name        string
		transitions map[string][]string
		from, to    string
		want        bool
	}{
		{name: "withdrawal pending to approved", transitions: withdrawalTransitions, from: StatusPending, to: StatusApproved, want: true},
		{name: "withdrawal pending to rejected", transitions: withdrawalTransitions, from: StatusPending, to: StatusRejected, want: true},
		{name: "withdrawal pending to paid", transitions: withdrawalTransitions, from: StatusPending, to: StatusPaid},
		{name: "withdrawal approved to paid", transitions: withdrawalTransitions, from: StatusApproved, to: StatusPaid, want: true},
		{name: "withdrawal approved to rejected", transitions: withdrawalTransitions, from: StatusApproved, to: StatusRejected, want: true},
		{name: "withdrawal paid is final", transitions: withdrawalTransitions, from: StatusPaid, to: StatusRejected},
		{name: "withdrawal rejected is final", transitions: withdrawalTransitions, from: StatusRejected, to: StatusApproved},
		{name: "paid work pending to paid", transitions: paidWorkTransitions, from: StatusPending, to: StatusPaid, want: true},
		{name: "paid work approved to paid", transitions: paidWorkTransitions, from: StatusApproved, to: StatusPaid, want: true},
		{name: "paid work paid is final", transitions: paidWorkTransitions, from: StatusPaid, to: StatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransition(tt.transitions, tt.from, tt.to); got != tt.want {
				t.Errorf("canTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}
