package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed validation", Validation("bad_field", "field is bad"), KindValidation},
		{"typed business", Business("duplicate_username", "taken"), KindBusiness},
		{"wrapped typed", fmt.Errorf("agent: %w", Business("x", "y")), KindBusiness},
		{"not found sentinel", ErrNotFound, KindBusiness},
		{"wrapped not found", fmt.Errorf("get project: %w", ErrNotFound), KindBusiness},
		{"not initialized", ErrNotInitialized, KindNotInitialized},
		{"already initialized", ErrAlreadyInitialized, KindAlreadyInitialized},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSubscriptionRequiredIsDistinct(t *testing.T) {
	err := SubscriptionRequired("codegen.generate", "pro")
	assert.Equal(t, KindSubscriptionRequired, KindOf(err))
	assert.NotEqual(t, KindUnauthenticated, KindOf(err))
	assert.Contains(t, err.Message, "pro")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal_error", CodeOf(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation_error", KindValidation.String())
	assert.Equal(t, "business_error", KindBusiness.String())
	assert.Equal(t, "already_initialized_differently", KindAlreadyInitialized.String())
	assert.Equal(t, "internal_error", KindInternal.String())
}
