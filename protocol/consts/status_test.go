package consts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownStatus(t *testing.T) {
	for _, code := range []int{100, 200, 204, 303, 404, 408, 413, 418, 500, 503, 511} {
		assert.True(t, IsKnownStatus(code), code)
	}
	for _, code := range []int{0, -1, 99, 209, 299, 420, 509, 512, 600, 999} {
		assert.False(t, IsKnownStatus(code), code)
	}
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "OK", StatusMessage(StatusOK))
	assert.Equal(t, "Not Found", StatusMessage(StatusNotFound))
	assert.Equal(t, "未知状态码", StatusMessage(299))
}

func TestIsRedirectStatus(t *testing.T) {
	assert.True(t, IsRedirectStatus(StatusSeeOther))
	assert.True(t, IsRedirectStatus(StatusPermanentRedirect))
	assert.False(t, IsRedirectStatus(StatusNotModified))
	assert.False(t, IsRedirectStatus(StatusOK))
}

func TestHasBody(t *testing.T) {
	assert.True(t, HasBody(MethodPost))
	assert.True(t, HasBody(MethodDelete))
	assert.False(t, HasBody(MethodGet))
	assert.False(t, HasBody(MethodOptions))
}
