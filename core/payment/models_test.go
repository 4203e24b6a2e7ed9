package payment

import "testing"

func TestMapStatus(t *testing.T) {
	tests := []struct {
		transaction, fraud string
		want               string
	}{
		{"capture", "accept", StatusPaid},
		{"capture", "", StatusPaid},
		{"capture", "challenge", StatusPending},
		{"capture", "deny", StatusFailed},
		{"settlement", "", StatusPaid},
		{"pending", "", StatusPending},
		{"deny", "", StatusFailed},
		{"cancel", "", StatusFailed},
		{"failure", "", StatusFailed},
		{"expire", "", StatusExpired},
		{"refund", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.transaction+"/"+tt.fraud, func(t *testing.T) {
			if got := MapStatus(tt.transaction, tt.fraud); got != tt.want {
				t.Errorf("MapStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	sig := Signature("ORDER-1", "200", "150000.00", "server-key")
	if len(sig) != 128 {
		t.Fatalf("Signature() length = %d, want 128", len(sig))
	}
	if sig != Signature("ORDER-1", "200", "150000.00", "server-key") {
		t.Error("Signature() is not deterministic")
	}
	if sig == Signature("ORDER-1", "200", "150000.00", "other-key") {
		t.Error("Signature() ignores the server key")
	}
}
