package request

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePaginationDefaults(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
}

func TestParsePaginationExplicit(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/?page=3&limit=25", nil))
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
}

func TestParsePaginationCapsLimit(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/?limit=5000", nil))
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestParsePaginationIgnoresGarbage(t *testing.T) {
	p := ParsePagination(httptest.NewRequest("GET", "/?page=-1&limit=zero", nil))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
}
