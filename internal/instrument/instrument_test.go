package instrument

import (
	"errors"
	"testing"
)

func TestValidateSymbol(t *testing.T) {
	valid := []string{"VERI", "BANC", "AB", "SIXSIX", "VERI.XETR"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Errorf("expected %q to be valid, got %v", s, err)
		}
	}

	invalid := []string{"", "v", "veri", "TOOLONGG", "VERI-X", "1234", "VERI.", ".XETR"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("expected %q to be invalid, got %v", s, err)
		}
	}
}

func TestNew(t *testing.T) {
	ins, err := New("VERI", "VeriBank AG", "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ins.Symbol != "VERI" || ins.Currency != "EUR" {
		t.Errorf("unexpected instrument: %+v", ins)
	}

	if _, err := New("bad symbol", "X", "EUR"); err == nil {
		t.Error("expected error for bad symbol")
	}
}
