package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *UserError
		expected string
	}{
		{
			name:     "simple message",
			err:      &UserError{Code: ErrCodeConfigNotFound, Message: "config file not found"},
			expected: "config file not found",
		},
		{
			name:     "message with context",
			err:      &UserError{Code: ErrCodeConfigNotFound, Message: "config file not found", Context: "envira.yaml"},
			expected: "config file not found (at envira.yaml)",
		},
		{
			name: "suggestion is not part of Error",
			err: &UserError{
				Code:       ErrCodeConfigNotFound,
				Message:    "config file not found",
				Context:    "envira.yaml",
				Suggestion: "check the path",
			},
			expected: "config file not found (at envira.yaml)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestUserError_Format(t *testing.T) {
	t.Parallel()

	err := NewCatalogNotFoundError("/tmp/catalog.yaml").WithUnderlying(errors.New("stat failed"))
	formatted := err.Format()

	assert.Contains(t, formatted, "[CATALOG_NOT_FOUND]")
	assert.Contains(t, formatted, "Location: /tmp/catalog.yaml")
	assert.Contains(t, formatted, "Cause: stat failed")
	assert.Contains(t, formatted, "Suggestion: Check the --catalog path")
}

func TestUserError_IsAndUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("root cause")
	err := NewUserError(ErrCodeConfigParse, "parse failed").WithUnderlying(root)

	assert.ErrorIs(t, err, root)
	assert.ErrorIs(t, err, &UserError{Code: ErrCodeConfigParse})
	assert.NotErrorIs(t, err, &UserError{Code: ErrCodeConfigNotFound})
}

func TestUserError_WithersCopy(t *testing.T) {
	t.Parallel()

	original := NewUserError(ErrCodeValidationFailed, "bad")
	changed := original.WithContext("workers").WithSuggestion("use 4")

	assert.Empty(t, original.Context)
	assert.Empty(t, original.Suggestion)
	assert.Equal(t, "workers", changed.Context)
	assert.Equal(t, "use 4", changed.Suggestion)
	assert.Equal(t, original.Code, changed.Code)
}

func TestErrorList(t *testing.T) {
	t.Parallel()

	list := NewErrorList()
	require.NoError(t, list.AsError())
	assert.Empty(t, list.Error())
	assert.Empty(t, list.Format())

	list.Add(nil)
	list.AddValidation("workers", "must be at least 1", "")
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "workers: must be at least 1 (at workers)", list.Error())

	list.Add(NewValidationFailedError("mode", "unknown"))
	require.Error(t, list.AsError())
	assert.Contains(t, list.Error(), "2 errors occurred")
	assert.Contains(t, list.Format(), "--- Error 2 ---")

	errs := list.Errors()
	errs[0] = nil
	assert.NotNil(t, list.Errors()[0])
}

func TestGetUserError(t *testing.T) {
	t.Parallel()

	wrapped := errors.Join(errors.New("other"), NewConfigNotFoundError("envira.yaml"))
	ue := GetUserError(wrapped)
	require.NotNil(t, ue)
	assert.Equal(t, ErrCodeConfigNotFound, ue.Code)
	assert.True(t, IsUserError(wrapped, ErrCodeConfigNotFound))
	assert.False(t, IsUserError(errors.New("plain"), ErrCodeConfigNotFound))
	assert.Nil(t, GetUserError(errors.New("plain")))
}

func TestNewYAMLParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     string
		message string
		context string
	}{
		{
			name:    "list where map expected",
			err:     "yaml: unmarshal errors:\n  line 3: cannot unmarshal !!seq into map[string]string",
			message: "expected an object but found a list",
			context: "envira.yaml (line 3)",
		},
		{
			name:    "map where list expected",
			err:     "yaml: unmarshal errors:\n  line 5: cannot unmarshal !!map into []string",
			message: "expected a list or value but found an object",
			context: "envira.yaml (line 5)",
		},
		{
			name:    "unknown field",
			err:     "yaml: unmarshal errors:\n  line 2: field wrokers not found in type config.RunConfig",
			message: "unknown field",
			context: "envira.yaml (line 2)",
		},
		{
			name:    "no line",
			err:     "yaml: something odd",
			message: "invalid YAML syntax",
			context: "envira.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ue := NewYAMLParseError(ErrCodeConfigParse, "envira.yaml", errors.New(tt.err))
			assert.Equal(t, ErrCodeConfigParse, ue.Code)
			assert.Equal(t, tt.message, ue.Message)
			assert.Equal(t, tt.context, ue.Context)
			assert.NotEmpty(t, ue.Suggestion)
		})
	}
}
