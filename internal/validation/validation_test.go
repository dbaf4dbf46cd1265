package validation

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecimalAcceptsNumbersAndStrings(t *testing.T) {
	for _, raw := range []string{`12.5`, `"12.5"`, `" 12.50 "`} {
		d, ok := Decimal(json.RawMessage(raw))
		if !ok {
			t.Fatalf("expected %s to parse", raw)
		}
		if d.StringFixed(2) != "12.50" {
			t.Fatalf("expected 12.50 from %s, got %s", raw, d.StringFixed(2))
		}
	}

	for _, raw := range []string{`"abc"`, `true`, `{}`, `[1]`} {
		if _, ok := Decimal(json.RawMessage(raw)); ok {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}

func TestIntegerRejectsFractions(t *testing.T) {
	if n, ok := Integer(json.RawMessage(`7`)); !ok || n != 7 {
		t.Fatalf("expected 7, got %d (%v)", n, ok)
	}
	if n, ok := Integer(json.RawMessage(`"42"`)); !ok || n != 42 {
		t.Fatalf("expected 42, got %d (%v)", n, ok)
	}
	if _, ok := Integer(json.RawMessage(`7.5`)); ok {
		t.Fatalf("expected fraction to be rejected")
	}
	if _, ok := Integer(json.RawMessage(`"seven"`)); ok {
		t.Fatalf("expected word to be rejected")
	}
}

func TestIsBlank(t *testing.T) {
	for _, raw := range []string{``, `null`, `""`, `"  "`} {
		if !IsBlank(json.RawMessage(raw)) {
			t.Fatalf("expected %q to be blank", raw)
		}
	}
	if IsBlank(json.RawMessage(`0`)) {
		t.Fatalf("zero is a value, not blank")
	}
}

func TestViolationsErr(t *testing.T) {
	v := Violations{}
	if v.Err() != nil {
		t.Fatalf("expected nil error for empty violations")
	}

	v.Add("paid", "The amount paid must be a number.")
	v.Add("paid", "second message is ignored")
	err := v.Err()

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Fields["paid"] != "The amount paid must be a number." {
		t.Fatalf("unexpected message %q", verr.Fields["paid"])
	}
}
