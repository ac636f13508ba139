package userpool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
)

const testNow = int64(1700000000000)

func setupPool(t *testing.T, attrs ...UsernameAttribute) (*Pool, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := New(context.Background(), Options{UsernameAttributes: attrs}, store.NewFileFactory(dir))
	require.NoError(t, err)
	return p, dir
}

func readDocument(t *testing.T, dir, name string) map[string]interface{} {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, name+".json"))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func testUser(username string, attrs ...Attribute) User {
	return User{
		Username:             username,
		Password:             "hunter2",
		UserStatus:           UserStatusUnconfirmed,
		Attributes:           attrs,
		UserCreateDate:       testNow,
		UserLastModifiedDate: testNow,
		Enabled:              true,
	}
}

func TestNew(t *testing.T) {
	t.Run("creates a database", func(t *testing.T) {
		_, dir := setupPool(t)

		assert.FileExists(t, filepath.Join(dir, "local.json"))
		assert.Equal(t, map[string]interface{}{
			"Options": map[string]interface{}{"UsernameAttributes": []interface{}{}},
			"Users":   map[string]interface{}{},
		}, readDocument(t, dir, "local"))
	})

	t.Run("custom pool id", func(t *testing.T) {
		dir := t.TempDir()
		p, err := New(context.Background(), Options{}, store.NewFileFactory(dir), WithPoolID("tenant-b"))
		require.NoError(t, err)
		assert.Equal(t, "tenant-b", p.ID())
		assert.FileExists(t, filepath.Join(dir, "tenant-b.json"))
	})

	t.Run("existing document keeps its users and options", func(t *testing.T) {
		p, dir := setupPool(t, AttributeEmail)
		require.NoError(t, p.SaveUser(context.Background(), testUser("1")))

		reopened, err := New(context.Background(), Options{}, store.NewFileFactory(dir))
		require.NoError(t, err)

		user, err := reopened.GetUserByUsername(context.Background(), "1")
		require.NoError(t, err)
		require.NotNil(t, user)

		doc := readDocument(t, dir, "local")
		assert.Equal(t, map[string]interface{}{"UsernameAttributes": []interface{}{"email"}}, doc["Options"])
	})

	tests := []struct {
		name    string
		options Options
		create  store.CreateDataStore
		wantErr error
	}{
		{
			name:    "unsupported attribute",
			options: Options{UsernameAttributes: []UsernameAttribute{"nickname"}},
			create:  store.NewFileFactory(t.TempDir()),
			wantErr: ErrInvalidOptions,
		},
		{
			name:    "duplicate attribute",
			options: Options{UsernameAttributes: []UsernameAttribute{AttributeEmail, AttributeEmail}},
			create:  store.NewFileFactory(t.TempDir()),
			wantErr: ErrInvalidOptions,
		},
		{
			name:    "missing base path",
			create:  store.NewFileFactory(filepath.Join(t.TempDir(), "missing")),
			wantErr: store.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.options, tt.create)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("nil factory", func(t *testing.T) {
		_, err := New(context.Background(), Options{}, nil)
		assert.Error(t, err)
	})
}

func TestPool_SaveUser(t *testing.T) {
	ctx := context.Background()

	t.Run("saves a user with their username as an additional attribute", func(t *testing.T) {
		p, dir := setupPool(t)

		user := testUser("1", Attribute{Name: "email", Value: "example@example.com"})
		user.Password = "hunter3"
		require.NoError(t, p.SaveUser(ctx, user))

		assert.JSONEq(t, `{
			"Options": {"UsernameAttributes": []},
			"Users": {
				"1": {
					"Username": "1",
					"Password": "hunter3",
					"UserStatus": "UNCONFIRMED",
					"Attributes": [
						{"Name": "sub", "Value": "1"},
						{"Name": "email", "Value": "example@example.com"}
					],
					"UserLastModifiedDate": 1700000000000,
					"UserCreateDate": 1700000000000,
					"Enabled": true
				}
			}
		}`, mustMarshal(t, readDocument(t, dir, "local")))
	})

	t.Run("updates a user", func(t *testing.T) {
		p, dir := setupPool(t)

		user := testUser("1", Attribute{Name: "email", Value: "example@example.com"})
		user.ConfirmationCode = "1234"
		require.NoError(t, p.SaveUser(ctx, user))

		stored := readDocument(t, dir, "local")["Users"].(map[string]interface{})["1"].(map[string]interface{})
		assert.Equal(t, "1234", stored["ConfirmationCode"])

		updated := testUser("1", Attribute{Name: "email", Value: "example@example.com"})
		updated.UserStatus = UserStatusConfirmed
		require.NoError(t, p.SaveUser(ctx, updated))

		stored = readDocument(t, dir, "local")["Users"].(map[string]interface{})["1"].(map[string]interface{})
		assert.Equal(t, "CONFIRMED", stored["UserStatus"])
		assert.NotContains(t, stored, "ConfirmationCode")

		got, err := p.GetUserByUsername(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, User{
			Username:             "1",
			Password:             "hunter2",
			UserStatus:           UserStatusConfirmed,
			Attributes:           []Attribute{{Name: "sub", Value: "1"}, {Name: "email", Value: "example@example.com"}},
			UserCreateDate:       testNow,
			UserLastModifiedDate: testNow,
			Enabled:              true,
		}, *got)
	})

	t.Run("replacement drops attributes missing from the new record", func(t *testing.T) {
		p, _ := setupPool(t)

		require.NoError(t, p.SaveUser(ctx, testUser("1",
			Attribute{Name: "email", Value: "example@example.com"},
			Attribute{Name: "phone_number", Value: "0411000111"},
		)))
		require.NoError(t, p.SaveUser(ctx, testUser("1")))

		got, err := p.GetUserByUsername(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []Attribute{{Name: "sub", Value: "1"}}, got.Attributes)
	})

	t.Run("sub injection is idempotent", func(t *testing.T) {
		p, _ := setupPool(t)

		user := testUser("1", Attribute{Name: "email", Value: "example@example.com"})
		require.NoError(t, p.SaveUser(ctx, user))

		first, err := p.GetUserByUsername(ctx, "1")
		require.NoError(t, err)
		require.NoError(t, p.SaveUser(ctx, *first))

		second, err := p.GetUserByUsername(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, first.Attributes, second.Attributes)
	})

	t.Run("missing username", func(t *testing.T) {
		p, _ := setupPool(t)
		assert.ErrorIs(t, p.SaveUser(ctx, testUser("")), ErrMissingUsername)
	})

	t.Run("usernames containing dots are single keys", func(t *testing.T) {
		p, dir := setupPool(t)
		require.NoError(t, p.SaveUser(ctx, testUser("first.last@example.com")))

		users := readDocument(t, dir, "local")["Users"].(map[string]interface{})
		assert.Contains(t, users, "first.last@example.com")
	})
}

func TestWithSub(t *testing.T) {
	tests := []struct {
		name  string
		attrs []Attribute
		want  []Attribute
	}{
		{
			name:  "nil attributes",
			attrs: nil,
			want:  []Attribute{{Name: "sub", Value: "u"}},
		},
		{
			name:  "prepends when absent",
			attrs: []Attribute{{Name: "email", Value: "e"}, {Name: "phone_number", Value: "p"}},
			want:  []Attribute{{Name: "sub", Value: "u"}, {Name: "email", Value: "e"}, {Name: "phone_number", Value: "p"}},
		},
		{
			name:  "keeps position of an existing sub",
			attrs: []Attribute{{Name: "email", Value: "e"}, {Name: "sub", Value: "u"}},
			want:  []Attribute{{Name: "email", Value: "e"}, {Name: "sub", Value: "u"}},
		},
		{
			name:  "corrects a wrong sub value",
			attrs: []Attribute{{Name: "sub", Value: "someone-else"}},
			want:  []Attribute{{Name: "sub", Value: "u"}},
		},
		{
			name:  "drops duplicate subs",
			attrs: []Attribute{{Name: "sub", Value: "u"}, {Name: "email", Value: "e"}, {Name: "sub", Value: "x"}},
			want:  []Attribute{{Name: "sub", Value: "u"}, {Name: "email", Value: "e"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withSub(tt.attrs, "u"))
		})
	}

	t.Run("does not modify the caller's slice", func(t *testing.T) {
		attrs := []Attribute{{Name: "sub", Value: "wrong"}}
		withSub(attrs, "u")
		assert.Equal(t, "wrong", attrs[0].Value)
	})
}

func TestPool_GetUserByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("username match wins over attribute match", func(t *testing.T) {
		p, _ := setupPool(t, AttributeEmail)
		require.NoError(t, p.SaveUser(ctx, testUser("a", Attribute{Name: "email", Value: "b"})))
		require.NoError(t, p.SaveUser(ctx, testUser("b")))

		got, err := p.GetUserByUsername(ctx, "b")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b", got.Username)
	})

	t.Run("attributes are tried in configured order", func(t *testing.T) {
		for _, tt := range []struct {
			attrs []UsernameAttribute
			want  string
		}{
			{attrs: []UsernameAttribute{AttributeEmail, AttributePhoneNumber}, want: "by-email"},
			{attrs: []UsernameAttribute{AttributePhoneNumber, AttributeEmail}, want: "by-phone"},
		} {
			p, _ := setupPool(t, tt.attrs...)
			require.NoError(t, p.SaveUser(ctx, testUser("by-email", Attribute{Name: "email", Value: "shared"})))
			require.NoError(t, p.SaveUser(ctx, testUser("by-phone", Attribute{Name: "phone_number", Value: "shared"})))

			got, err := p.GetUserByUsername(ctx, "shared")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Username, "attributes %v", tt.attrs)
		}
	})

	t.Run("duplicate attribute values resolve to the first username", func(t *testing.T) {
		p, _ := setupPool(t, AttributePhoneNumber)
		require.NoError(t, p.SaveUser(ctx, testUser("zed", Attribute{Name: "phone_number", Value: "0411000111"})))
		require.NoError(t, p.SaveUser(ctx, testUser("amy", Attribute{Name: "phone_number", Value: "0411000111"})))

		got, err := p.GetUserByUsername(ctx, "0411000111")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "amy", got.Username)
	})

	t.Run("no match", func(t *testing.T) {
		p, _ := setupPool(t, AttributeEmail, AttributePhoneNumber)
		require.NoError(t, p.SaveUser(ctx, testUser("1", Attribute{Name: "email", Value: "example@example.com"})))

		got, err := p.GetUserByUsername(ctx, "other@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("attribute lookups are off without username attributes", func(t *testing.T) {
		p, _ := setupPool(t)
		require.NoError(t, p.SaveUser(ctx, testUser("1", Attribute{Name: "email", Value: "example@example.com"})))

		got, err := p.GetUserByUsername(ctx, "example@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("empty identifier misses", func(t *testing.T) {
		p, _ := setupPool(t, AttributeEmail)
		require.NoError(t, p.SaveUser(ctx, testUser("1", Attribute{Name: "email", Value: ""})))

		got, err := p.GetUserByUsername(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPool_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	p, _ := setupPool(t)

	users, err := p.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, p.SaveUser(ctx, testUser(name)))
	}

	users, err = p.ListUsers(ctx)
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, p.DeleteUser(ctx, "b"))
	require.NoError(t, p.DeleteUser(ctx, "nobody"))
	assert.ErrorIs(t, p.DeleteUser(ctx, ""), ErrMissingUsername)

	got, err := p.GetUserByUsername(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)

	users, err = p.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestPool_CacheBackend(t *testing.T) {
	ctx := context.Background()
	c, err := cache.New(ctx, &cache.Config{Driver: "memory"})
	require.NoError(t, err)

	p, err := New(ctx, Options{UsernameAttributes: []UsernameAttribute{AttributeEmail, AttributePhoneNumber}}, store.NewCacheFactory(c))
	require.NoError(t, err)

	require.NoError(t, p.SaveUser(ctx, testUser("1",
		Attribute{Name: "email", Value: "example@example.com"},
		Attribute{Name: "phone_number", Value: "0411000111"},
	)))

	for _, id := range []string{"1", "example@example.com", "0411000111"} {
		got, err := p.GetUserByUsername(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got, id)
		assert.Equal(t, "1", got.Username)
	}
}

func TestPool_Options(t *testing.T) {
	p, _ := setupPool(t, AttributeEmail)

	opts := p.Options()
	opts.UsernameAttributes[0] = AttributePhoneNumber

	assert.Equal(t, []UsernameAttribute{AttributeEmail}, p.Options().UsernameAttributes)
	assert.True(t, p.Options().HasUsernameAttributes())
}

func TestNewUsername(t *testing.T) {
	a, b := NewUsername(), NewUsername()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestNewUser(t *testing.T) {
	now := time.UnixMilli(testNow)
	u := NewUser("1", "pw", []Attribute{{Name: "email", Value: "e"}}, now)

	assert.Equal(t, UserStatusUnconfirmed, u.UserStatus)
	assert.True(t, u.Enabled)
	assert.Equal(t, testNow, u.UserCreateDate)
	assert.Equal(t, testNow, u.UserLastModifiedDate)

	v, ok := u.Attribute("email")
	assert.True(t, ok)
	assert.Equal(t, "e", v)
	_, ok = u.Attribute("phone_number")
	assert.False(t, ok)
}

func TestParseUsernameAttributes(t *testing.T) {
	attrs, err := ParseUsernameAttributes([]string{"phone_number", "email"})
	require.NoError(t, err)
	assert.Equal(t, []UsernameAttribute{AttributePhoneNumber, AttributeEmail}, attrs)

	_, err = ParseUsernameAttributes([]string{"preferred_username"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
