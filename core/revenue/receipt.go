package revenue

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// Receipt renders a paid withdrawal as a one-row CSV sheet.
func Receipt(w Withdrawal) ([]byte, error) {
	var processed string
	if w.ProcessedAt != nil {
		processed = w.ProcessedAt.UTC().Format(time.RFC3339)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"withdrawal", "teacher", "amount", "method", "account", "requested_at", "processed_at", "note"})
	_ = cw.Write([]string{
		w.ID,
		w.TeacherName,
		strconv.FormatInt(w.Amount, 10),
		w.Method,
		w.AccountDetails,
		w.CreatedAt.UTC().Format(time.RFC3339),
		processed,
		w.AdminNote,
	})
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

func receiptName(w Withdrawal) string {
	return "withdrawal-" + w.ID + ".csv"
}
