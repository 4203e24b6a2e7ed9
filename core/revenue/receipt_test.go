package revenue

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReceipt(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	paid := created.Add(48 * time.Hour)

	tests := []struct {
		name string
		w    Withdrawal
		want []string
	}{
		{
			name: "paid",
			w: Withdrawal{
				ID: "w1", TeacherName: "Tina, PhD", Amount: 150000, Method: "bank",
				AccountDetails: "BCA 123", Status: StatusPaid, AdminNote: "transfer \"ok\"",
				CreatedAt: created, ProcessedAt: &paid,
			},
			want: []string{"w1", "Tina, PhD", "150000", "bank", "BCA 123", "2024-03-01T09:30:00Z", "2024-03-03T09:30:00Z", "transfer \"ok\""},
		},
		{
			name: "not processed",
			w:    Withdrawal{ID: "w2", Amount: 1, CreatedAt: created},
			want: []string{"w2", "", "1", "", "", "2024-03-01T09:30:00Z", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Receipt(tt.w)
			if err != nil {
				t.Fatalf("Receipt() error = %v", err)
			}
			rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
			if err != nil {
				t.Fatalf("reading receipt: %v", err)
			}
			if len(rows) != 2 || rows[0][0] != "withdrawal" {
				t.Fatalf("Receipt() rows = %q; want a header and one row", rows)
			}
			if diff := cmp.Diff(tt.want, rows[1]); diff != "" {
				t.Errorf("Receipt() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
