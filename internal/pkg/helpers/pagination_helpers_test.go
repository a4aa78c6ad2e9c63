package helpers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCalculateOffsetLimit(t *testing.T) {
	offset, limit := CalculateOffsetLimit(1, 20)
	assert.Equal(t, uint64(0), offset)
	assert.Equal(t, 20, limit)

	offset, limit = CalculateOffsetLimit(3, 10)
	assert.Equal(t, uint64(20), offset)
	assert.Equal(t, 10, limit)

	// Out-of-range values fall back to defaults.
	offset, limit = CalculateOffsetLimit(0, 0)
	assert.Equal(t, uint64(0), offset)
	assert.Equal(t, DefaultPageSize, limit)

	_, limit = CalculateOffsetLimit(1, MaxPageSize+1)
	assert.Equal(t, DefaultPageSize, limit)
}

func TestHasMore(t *testing.T) {
	// 5 items, page 1 of size 3 holds 3: more remains.
	assert.True(t, HasMore(5, 1, 3, 3))
	// Page 2 holds the last 2: nothing past the window.
	assert.False(t, HasMore(5, 2, 3, 2))
	// Exactly one page.
	assert.False(t, HasMore(3, 1, 3, 3))
	// Empty result set.
	assert.False(t, HasMore(0, 1, 20, 0))
}

func TestParsePaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(query string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+query, nil)
		return c
	}

	page, size := ParsePaginationParams(newCtx("page=2&size=50"))
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, size)

	page, size = ParsePaginationParams(newCtx(""))
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = ParsePaginationParams(newCtx("page=-1&size=9999"))
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = ParsePaginationParams(newCtx("page=abc&size=xyz"))
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultPageSize, size)
}

func TestInt64SliceContains(t *testing.T) {
	assert.True(t, Int64SliceContains([]int64{1, 2, 3}, 2))
	assert.False(t, Int64SliceContains([]int64{1, 2, 3}, 4))
	assert.False(t, Int64SliceContains(nil, 1))
}

func TestRemoveInt64s(t *testing.T) {
	assert.Equal(t, []int64{1, 3}, RemoveInt64s([]int64{1, 2, 3}, []int64{2}))
	assert.Equal(t, []int64{}, RemoveInt64s([]int64{1, 2}, []int64{1, 2}))

	// Absent ids are ignored, order preserved.
	assert.Equal(t, []int64{5, 1, 9}, RemoveInt64s([]int64{5, 1, 9}, []int64{7}))

	in := []int64{1, 2, 3}
	assert.Equal(t, in, RemoveInt64s(in, nil))
}
