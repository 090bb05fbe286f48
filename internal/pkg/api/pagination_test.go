package api

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func requestWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/tasks?"+query, nil)
	return c
}

// TestParsePagination tests clamping of page and limit
func TestParsePagination(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		limit int
	}{
		{name: "Defaults", query: "", page: 1, limit: 50},
		{name: "Explicit values", query: "page=3&limit=25", page: 3, limit: 25},
		{name: "Zero page clamps", query: "page=0&limit=10", page: 1, limit: 10},
		{name: "Negative limit clamps to default", query: "page=1&limit=-5", page: 1, limit: 50},
		{name: "Limit above maximum clamps", query: "page=1&limit=1000", page: 1, limit: 200},
		{name: "Garbage falls back", query: "page=abc&limit=xyz", page: 1, limit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := ParsePagination(requestWithQuery(tt.query))
			assert.Equal(t, tt.page, page.Page)
			assert.Equal(t, tt.limit, page.Limit)
		})
	}
}

// TestNewPageResponse tests page math
func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse([]string{"a", "b"}, 2, 2, 5)
	assert.Equal(t, int64(3), resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrev)

	empty := NewPageResponse[string](nil, 1, 50, 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, int64(1), empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}
