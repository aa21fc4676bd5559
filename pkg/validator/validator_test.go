package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type registerPayload struct {
	Username string `json:"username" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := registerPayload{Username: "alice", Email: "alice@example.com", Role: "user"}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructUsesJSONAndFormNames(t *testing.T) {
	err := ValidateStruct(registerPayload{Email: "nope", Role: "root"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := vErrs.Fields()
	want := []string{"username", "email", "role"}
	if len(fields) != len(want) {
		t.Fatalf("expected %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, fields)
		}
	}
}

func TestIsEmail(t *testing.T) {
	if !IsEmail("bob@example.com") {
		t.Fatal("expected valid email")
	}
	for _, bad := range []string{"", "bob", "bob@"} {
		if IsEmail(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"even_length"`
	}

	if err := ValidateStruct(custom{Value: "ab"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "abc"}); err == nil {
		t.Fatal("expected validation to fail")
	}
}

func TestUsernameRule(t *testing.T) {
	type account struct {
		Username string `json:"username" validate:"username"`
	}
	for _, ok := range []string{"alice", "bob.smith", "carol_1", "d-e"} {
		if err := ValidateStruct(account{Username: ok}); err != nil {
			t.Fatalf("expected %q to pass, got %v", ok, err)
		}
	}
	for _, bad := range []string{"", "two words", "semi;colon", "tab\t"} {
		err := ValidateStruct(account{Username: bad})
		vErrs, ok := err.(ValidationErrors)
		if !ok || vErrs[0].Tag != "username" {
			t.Fatalf("expected %q to fail the username rule, got %v", bad, err)
		}
	}
}
