package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormStateBlank(t *testing.T) {
	form := FormState{"businessName": "Acme", "industry": "   "}
	assert.False(t, form.IsBlank("businessName"))
	assert.True(t, form.IsBlank("industry"))
	assert.True(t, form.IsBlank("budget"))

	var empty FormState
	assert.True(t, empty.IsBlank("anything"))
	assert.Equal(t, map[string]string{"budget": ""}, empty.Subset([]string{"budget"}))
}

func TestFormStateCloneIsIndependent(t *testing.T) {
	form := FormState{"budget": "5000"}
	clone := form.Clone()
	clone["budget"] = "6000"
	assert.Equal(t, "5000", form["budget"])
}

type codedErr struct{ code int }

func (e codedErr) Error() string   { return "coded" }
func (e codedErr) StatusCode() int { return e.code }

func TestAsProviderError(t *testing.T) {
	t.Run("status method", func(t *testing.T) {
		pe := AsProviderError(fmt.Errorf("stream: %w", codedErr{code: 429}))
		require.NotNil(t, pe)
		assert.Equal(t, 429, pe.StatusCode)
		assert.Equal(t, 429, pe.HTTPStatus())
	})
	t.Run("status text", func(t *testing.T) {
		pe := AsProviderError(errors.New("error, status code: 401, status: 401 Unauthorized, message: bad key"))
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	})
	t.Run("unknown status", func(t *testing.T) {
		pe := AsProviderError(errors.New("dial tcp: connection refused"))
		assert.Equal(t, 0, pe.StatusCode)
		assert.Equal(t, http.StatusInternalServerError, pe.HTTPStatus())
	})
	t.Run("keeps existing", func(t *testing.T) {
		orig := &ProviderError{StatusCode: 503, Message: "down"}
		assert.Same(t, orig, AsProviderError(fmt.Errorf("wrapped: %w", orig)))
	})
	assert.Nil(t, AsProviderError(nil))
}

func TestFormatFieldTable(t *testing.T) {
	fields := []FieldInfo{
		{Name: "businessName", DisplayName: "Company Name"},
		{Name: "industry", DisplayName: "Industry"},
	}
	out := FormatFieldTable("Business Profile", fields, FormState{"businessName": "Acme Inc"})
	assert.Contains(t, out, "## Business Profile")
	assert.Contains(t, out, "Acme Inc")
	assert.Contains(t, out, "Industry")
	assert.Empty(t, FormatFieldTable("x", nil, nil))
	assert.Equal(t, "None", FormatList(nil))
	assert.Equal(t, "a, b", FormatList([]string{"a", "b"}))
}
