package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-keyring/core"
)

func TestBeginAuthMessage_ValidateReturnsRichError(t *testing.T) {
	err := (BeginAuthMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.KeyringErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.KeyringErrorBadInput, rich.TextCode)
	}
}

func TestBeginAuthCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *BeginAuthCommand
	err := cmd.Execute(context.Background(), BeginAuthMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
