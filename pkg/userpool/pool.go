package userpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
)

// DefaultPoolID names the data store a pool opens unless WithPoolID is given
const DefaultPoolID = "local"

const (
	keyOptions = "Options"
	keyUsers   = "Users"
)

// UserPool defines the user record operations served by a pool
type UserPool interface {
	// Options returns the configuration the pool was created with
	Options() Options

	// SaveUser stores user under its username, replacing any previous record entirely
	SaveUser(ctx context.Context, user User) error

	// GetUserByUsername resolves identifier by username, then by each configured username attribute
	// Returns nil without error when nothing matches
	GetUserByUsername(ctx context.Context, identifier string) (*User, error)

	// ListUsers returns every user ordered by username
	ListUsers(ctx context.Context) ([]User, error)

	// DeleteUser removes the user stored under username; absent users are ignored
	DeleteUser(ctx context.Context, username string) error
}

// Pool stores users in the "Users" object of one data store document
// NOTE: operations on one Pool are serialized; two Pools over the same
// backing document are not coordinated and the last write wins
type Pool struct {
	mu      sync.Mutex
	id      string
	options Options
	store   store.DataStore
}

// Option customizes a Pool at creation
type Option func(*Pool)

// WithPoolID opens the data store called id instead of DefaultPoolID
func WithPoolID(id string) Option {
	return func(p *Pool) {
		p.id = id
	}
}

// New opens the pool's data store through createDataStore, seeding a new one with
// {Options: options, Users: {}}. options are kept for the lifetime of the pool.
func New(ctx context.Context, options Options, createDataStore store.CreateDataStore, opts ...Option) (*Pool, error) {
	if createDataStore == nil {
		return nil, errors.New("data store factory is required")
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	attrs := make([]UsernameAttribute, len(options.UsernameAttributes))
	copy(attrs, options.UsernameAttributes)

	p := &Pool{
		id:      DefaultPoolID,
		options: Options{UsernameAttributes: attrs},
	}
	for _, opt := range opts {
		opt(p)
	}

	ds, err := createDataStore(ctx, p.id, store.Document{
		keyOptions: p.options,
		keyUsers:   map[string]User{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open user pool %q: %w", p.id, err)
	}
	p.store = ds

	logger.Logger(ctx).WithFields(logrus.Fields{
		"pool":                p.id,
		"username_attributes": p.options.UsernameAttributes,
	}).Debug("user pool ready")

	return p, nil
}

// ID returns the name of the pool's data store
func (p *Pool) ID() string {
	return p.id
}

func (p *Pool) Options() Options {
	attrs := make([]UsernameAttribute, len(p.options.UsernameAttributes))
	copy(attrs, p.options.UsernameAttributes)
	return Options{UsernameAttributes: attrs}
}

func (p *Pool) SaveUser(ctx context.Context, user User) error {
	if user.Username == "" {
		return ErrMissingUsername
	}
	user.Attributes = withSub(user.Attributes, user.Username)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Set(ctx, []string{keyUsers, user.Username}, user); err != nil {
		return fmt.Errorf("failed to save user %q: %w", user.Username, err)
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"pool":     p.id,
		"username": user.Username,
	}).Debug("saved user")
	return nil
}

func (p *Pool) GetUserByUsername(ctx context.Context, identifier string) (*User, error) {
	if identifier == "" {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.store.Get(ctx, keyUsers, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", identifier, err)
	}
	if val != nil {
		var user User
		if err := store.Decode(val, &user); err != nil {
			return nil, fmt.Errorf("%w: user %q: %w", store.ErrCorruptData, identifier, err)
		}
		return &user, nil
	}

	if !p.options.HasUsernameAttributes() {
		return nil, nil
	}

	users, err := p.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, attr := range p.options.UsernameAttributes {
		for i := range users {
			if v, ok := users[i].Attribute(string(attr)); ok && v == identifier {
				return &users[i], nil
			}
		}
	}
	return nil, nil
}

func (p *Pool) ListUsers(ctx context.Context) ([]User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.users(ctx)
}

func (p *Pool) DeleteUser(ctx context.Context, username string) error {
	if username == "" {
		return ErrMissingUsername
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(ctx, keyUsers, username); err != nil {
		return fmt.Errorf("failed to delete user %q: %w", username, err)
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"pool":     p.id,
		"username": username,
	}).Debug("deleted user")
	return nil
}

// users returns all stored users ordered by username, which is also their order on disk
// Caller must hold p.mu
func (p *Pool) users(ctx context.Context) ([]User, error) {
	val, err := p.store.Get(ctx, keyUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if val == nil {
		return []User{}, nil
	}

	var byName map[string]User
	if err := store.Decode(val, &byName); err != nil {
		return nil, fmt.Errorf("%w: users: %w", store.ErrCorruptData, err)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	users := make([]User, 0, len(names))
	for _, name := range names {
		users = append(users, byName[name])
	}
	return users, nil
}

// NewUsername returns a fresh stable identifier for users who sign up with an alias attribute
func NewUsername() string {
	return uuid.NewString()
}

// Compile-time interface compliance check
var _ UserPool = (*Pool)(nil)
