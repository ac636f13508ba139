package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OpenFunc opens the same named store again on every call, sharing the backing medium
// Backend tests supply one so RunDataStoreTests can exercise reopen semantics
type OpenFunc func(t *testing.T, name string, defaults Document) (DataStore, error)

// DataStoreTestCase defines a test case run against an opened store
type DataStoreTestCase struct {
	Name       string
	Defaults   Document
	SetupFunc  func(t *testing.T, ctx context.Context, s DataStore)
	VerifyFunc func(t *testing.T, ctx context.Context, s DataStore, open OpenFunc)
}

// poolDefaults is the shape the identity pool seeds its store with
func poolDefaults() Document {
	return Document{
		"Options": map[string]interface{}{"UsernameAttributes": []interface{}{}},
		"Users":   map[string]interface{}{},
	}
}

// DataStoreTestCases is the behaviour every DataStore backend must share
func DataStoreTestCases() []DataStoreTestCase {
	return []DataStoreTestCase{
		{
			Name:     "open seeds defaults",
			Defaults: poolDefaults(),
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				root, err := s.GetRoot(ctx)
				require.NoError(t, err)
				assert.Equal(t, poolDefaults(), root)
			},
		},
		{
			Name:     "nil defaults create an empty document",
			Defaults: nil,
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				root, err := s.GetRoot(ctx)
				require.NoError(t, err)
				assert.Equal(t, Document{}, root)
			},
		},
		{
			Name:     "reopen never overwrites existing content with defaults",
			Defaults: poolDefaults(),
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"Users", "1"}, map[string]interface{}{"Username": "1"}))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, open OpenFunc) {
				reopened, err := open(t, s.Name(), Document{"Users": map[string]interface{}{}, "Other": true})
				require.NoError(t, err)

				v, err := reopened.Get(ctx, "Users", "1", "Username")
				require.NoError(t, err)
				assert.Equal(t, "1", v)

				other, err := reopened.Get(ctx, "Other")
				require.NoError(t, err)
				assert.Nil(t, other)
			},
		},
		{
			Name:     "get returns nil for a missing segment",
			Defaults: poolDefaults(),
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				for _, path := range [][]string{
					{"Missing"},
					{"Users", "nobody"},
					{"Users", "nobody", "Attributes"},
					{"Options", "UsernameAttributes", "0"},
				} {
					v, err := s.Get(ctx, path...)
					require.NoError(t, err)
					assert.Nil(t, v, "path %v", path)
				}
			},
		},
		{
			Name:     "get with empty path returns the whole document",
			Defaults: poolDefaults(),
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				v, err := s.Get(ctx)
				require.NoError(t, err)
				assert.Equal(t, poolDefaults(), v)
			},
		},
		{
			Name:     "set creates intermediate objects",
			Defaults: nil,
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"a", "b", "c"}, "deep"))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				v, err := s.Get(ctx, "a", "b", "c")
				require.NoError(t, err)
				assert.Equal(t, "deep", v)
			},
		},
		{
			Name:     "set replaces a non-object intermediate",
			Defaults: Document{"a": "scalar"},
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"a", "b"}, true))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				v, err := s.Get(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, map[string]interface{}{"b": true}, v)
			},
		},
		{
			Name:     "set fully replaces the previous value",
			Defaults: poolDefaults(),
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"Users", "1"}, map[string]interface{}{
					"Username":         "1",
					"ConfirmationCode": "1234",
				}))
				require.NoError(t, s.Set(ctx, []string{"Users", "1"}, map[string]interface{}{
					"Username": "1",
				}))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				v, err := s.Get(ctx, "Users", "1")
				require.NoError(t, err)
				assert.Equal(t, map[string]interface{}{"Username": "1"}, v)
			},
		},
		{
			Name:     "set with empty path replaces the document",
			Defaults: poolDefaults(),
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, nil, map[string]interface{}{"fresh": "start"}))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				root, err := s.GetRoot(ctx)
				require.NoError(t, err)
				assert.Equal(t, Document{"fresh": "start"}, root)

				assert.Error(t, s.Set(ctx, nil, []string{"not", "an", "object"}))
			},
		},
		{
			Name:     "integers survive a read-modify-write",
			Defaults: nil,
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"UserCreateDate"}, int64(1700000000123)))
				require.NoError(t, s.Set(ctx, []string{"Other"}, "x"))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				v, err := s.Get(ctx, "UserCreateDate")
				require.NoError(t, err)
				assert.Equal(t, json.Number("1700000000123"), v)
			},
		},
		{
			Name:     "delete removes a value and ignores absent paths",
			Defaults: poolDefaults(),
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				require.NoError(t, s.Set(ctx, []string{"Users", "1"}, map[string]interface{}{"Username": "1"}))
				require.NoError(t, s.Set(ctx, []string{"Users", "2"}, map[string]interface{}{"Username": "2"}))
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				require.NoError(t, s.Delete(ctx, "Users", "1"))
				require.NoError(t, s.Delete(ctx, "Users", "nobody"))
				require.NoError(t, s.Delete(ctx, "Missing", "deeper"))
				assert.Error(t, s.Delete(ctx))

				users, err := s.Get(ctx, "Users")
				require.NoError(t, err)
				assert.Equal(t, map[string]interface{}{
					"2": map[string]interface{}{"Username": "2"},
				}, users)
			},
		},
		{
			Name:     "concurrent sets through one handle are not lost",
			Defaults: poolDefaults(),
			SetupFunc: func(t *testing.T, ctx context.Context, s DataStore) {
				var wg sync.WaitGroup
				errs := make(chan error, 20)
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						errs <- s.Set(ctx, []string{"Users", fmt.Sprint(i)}, map[string]interface{}{"Username": fmt.Sprint(i)})
					}(i)
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}
			},
			VerifyFunc: func(t *testing.T, ctx context.Context, s DataStore, _ OpenFunc) {
				users, err := s.Get(ctx, "Users")
				require.NoError(t, err)
				assert.Len(t, users, 20)
			},
		},
	}
}

// RunDataStoreTests runs DataStoreTestCases against a backend, each case in its own named store
func RunDataStoreTests(t *testing.T, open OpenFunc) {
	for i, tt := range DataStoreTestCases() {
		t.Run(tt.Name, func(t *testing.T) {
			ctx := context.Background()
			s, err := open(t, fmt.Sprintf("case-%d", i), tt.Defaults)
			require.NoError(t, err)

			if tt.SetupFunc != nil {
				tt.SetupFunc(t, ctx, s)
			}
			tt.VerifyFunc(t, ctx, s, open)
		})
	}
}
