package enums

import "testing"

func TestParseRoundTripsKnownValues(t *testing.T) {
	for _, status := range validCardStatuses {
		got, err := ParseCardStatus(status.String())
		if err != nil || got != status {
			t.Fatalf("ParseCardStatus(%q) = %q, %v", status, got, err)
		}
	}
	for _, kind := range validTransactionKinds {
		got, err := ParseTransactionKind(kind.String())
		if err != nil || got != kind {
			t.Fatalf("ParseTransactionKind(%q) = %q, %v", kind, got, err)
		}
	}
	for _, role := range validUserRoles {
		got, err := ParseUserRole(role.String())
		if err != nil || got != role {
			t.Fatalf("ParseUserRole(%q) = %q, %v", role, got, err)
		}
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseCardStatus("Aktif"); err == nil {
		t.Fatal("expected error for unknown card status")
	}
	if _, err := ParseTransactionKind("refund"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := ParseTransactionStatus(""); err == nil {
		t.Fatal("expected error for empty status")
	}
	if _, err := ParseScanSource("bluetooth"); err == nil {
		t.Fatal("expected error for unknown scan source")
	}
	if TransactionMethod("cash").IsValid() {
		t.Fatal("cash should not be a valid method")
	}
}

func TestCardStatusCanTransact(t *testing.T) {
	if !CardStatusActive.CanTransact() {
		t.Fatal("active cards must transact")
	}
	for _, status := range []CardStatus{CardStatusInactive, CardStatusLost, CardStatusBlocked} {
		if status.CanTransact() {
			t.Fatalf("%s card must not transact", status)
		}
	}
}

func TestTransactionMethodScanSource(t *testing.T) {
	cases := map[TransactionMethod]ScanSource{
		TransactionMethodNFC:    ScanSourceNFC,
		TransactionMethodQR:     ScanSourceQR,
		TransactionMethodManual: ScanSourceManual,
	}
	for method, want := range cases {
		if got := method.ScanSource(); got != want {
			t.Fatalf("%s.ScanSource() = %s, want %s", method, got, want)
		}
	}
}
