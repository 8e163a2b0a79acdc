package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaginationDefaults(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/games", nil)
	page, limit, offset, err := parsePagination(request)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)
}

func TestParsePaginationOffsets(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/games?page=3&limit=25", nil)
	page, limit, offset, err := parsePagination(request)
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, limit)
	assert.Equal(t, 50, offset)
}

func TestParsePaginationAcceptsPerPage(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/games?per_page=7", nil)
	_, limit, _, err := parsePagination(request)
	require.NoError(t, err)
	assert.Equal(t, 7, limit)
}

func TestParsePaginationCapsLimit(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/games?limit=500", nil)
	_, limit, _, err := parsePagination(request)
	require.NoError(t, err)
	assert.Equal(t, maxLimit, limit)
}

func TestParsePaginationRejectsGarbage(t *testing.T) {
	for _, query := range []string{"page=0", "page=abc", "limit=0", "limit=-5", "limit=x"} {
		request := httptest.NewRequest(http.MethodGet, "/games?"+query, nil)
		_, _, _, err := parsePagination(request)
		assert.Error(t, err, query)
	}
}
