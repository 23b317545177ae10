package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/yishan1331/student-affairs-management/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	err := repo.Get(ctx, "salary:summary:2024-03-01:2024-03-31:all", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "salary:summary:2024-03-01:2024-03-31:all", dest, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "salary:summary:*"))
}
