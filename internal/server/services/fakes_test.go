package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/linkedaccounts"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*models.User
	getErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrDuplicateUser
	}
	f.nextID++
	cp := *u
	cp.ID, cp.IsActive = f.nextID, true
	cp.CreatedAt, cp.UpdatedAt = time.Now(), time.Now()
	f.byName[u.UserName] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[userName]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == userID {
			u.PasswordHash = hash
			return nil
		}
	}
	return common.ErrNotFound
}

// --- linked accounts ---

type fakeAccountsRepo struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*models.LinkedAccount
	statuses []models.AccountStatus // every status write, in order
	listErr  error
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{rows: map[int64]*models.LinkedAccount{}}
}

func clone(a *models.LinkedAccount) *models.LinkedAccount {
	cp := *a
	return &cp
}

func (f *fakeAccountsRepo) Upsert(ctx context.Context, a *models.LinkedAccount) (*models.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, row := range f.rows {
		if row.UserID == a.UserID && row.Phone == a.Phone {
			id, created := row.ID, row.CreatedAt
			*row = *a
			row.ID, row.CreatedAt, row.UpdatedAt = id, created, now
			return clone(row), nil
		}
	}
	f.nextID++
	row := clone(a)
	row.ID, row.CreatedAt, row.UpdatedAt = f.nextID, now.Add(time.Duration(f.nextID)), now
	f.rows[row.ID] = row
	return clone(row), nil
}

func (f *fakeAccountsRepo) GetByID(ctx context.Context, id, userID int64) (*models.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return nil, common.ErrNotFound
	}
	return clone(row), nil
}

func (f *fakeAccountsRepo) ListByUser(ctx context.Context, userID int64) ([]*models.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.LinkedAccount, 0)
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeAccountsRepo) UpdateStatus(ctx context.Context, id, userID int64, status models.AccountStatus, lastActive *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return common.ErrNotFound
	}
	row.Status = status
	if lastActive != nil {
		t := *lastActive
		row.LastActive = &t
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeAccountsRepo) Delete(ctx context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.UserID != userID {
		return common.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeAccountsRepo) CountBySessionKey(ctx context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if row.SessionKey != nil && *row.SessionKey == key {
			n++
		}
	}
	return n, nil
}

func (f *fakeAccountsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeAccountsRepo) get(id int64) *models.LinkedAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return clone(row)
	}
	return nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	accounts *fakeAccountsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newFakeUsersRepo(), accounts: newFakeAccountsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error         { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                   { return m.users }
func (m *fakeRepoManager) LinkedAccounts(db dbx.DBTX) linkedaccounts.Repository { return m.accounts }

// --- messaging ---

// fakeNetwork plays the messaging network for every phone. Behaviour is keyed
// by material key.
type fakeNetwork struct {
	mu          sync.Mutex
	connects    int
	open        int
	maxOpen     map[string]int
	openByKey   map[string]int
	connectErr  map[string]error
	hang        map[string]bool // block until the context expires
	authorized  map[string]bool
	authErr     map[string]error
	onAuth      map[string]func() // runs inside IsAuthorized
	validCode   string
	twoFactor   map[string]bool
	identity    messaging.Identity
	codeCounter int
	lastCreds   messaging.Credentials
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		maxOpen:    map[string]int{},
		openByKey:  map[string]int{},
		connectErr: map[string]error{},
		hang:       map[string]bool{},
		authorized: map[string]bool{},
		authErr:    map[string]error{},
		onAuth:     map[string]func(){},
		twoFactor:  map[string]bool{},
		validCode:  "12345",
		identity:   messaging.Identity{ExternalID: 777, UserName: "bob", FirstName: "Bob"},
	}
}

func (n *fakeNetwork) Connect(ctx context.Context, key string, creds messaging.Credentials) (messaging.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connects++
	n.lastCreds = creds
	if err := n.connectErr[key]; err != nil {
		return nil, err
	}
	n.open++
	n.openByKey[key]++
	if n.openByKey[key] > n.maxOpen[key] {
		n.maxOpen[key] = n.openByKey[key]
	}
	return &fakeConn{n: n, key: key}, nil
}

func (n *fakeNetwork) stats() (connects, open int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connects, n.open
}

func (n *fakeNetwork) set(fn func(n *fakeNetwork)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n)
}

type fakeConn struct {
	n    *fakeNetwork
	key  string
	once sync.Once
}

func (c *fakeConn) wait(ctx context.Context) error {
	c.n.mu.Lock()
	hang := c.n.hang[c.key]
	c.n.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (c *fakeConn) RequestCode(ctx context.Context, phone string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	c.n.codeCounter++
	return "hash-" + phone, nil
}

func (c *fakeConn) SignIn(ctx context.Context, phone, code, codeHash string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	if codeHash != "hash-"+phone || code != c.n.validCode {
		return common.ErrInvalidCode
	}
	if c.n.twoFactor[c.key] {
		return common.ErrTwoFactorRequired
	}
	c.n.authorized[c.key] = true
	return nil
}

func (c *fakeConn) CurrentIdentity(ctx context.Context) (*messaging.Identity, error) {
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	id := c.n.identity
	return &id, nil
}

func (c *fakeConn) IsAuthorized(ctx context.Context) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	c.n.mu.Lock()
	hook := c.n.onAuth[c.key]
	c.n.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	if err := c.n.authErr[c.key]; err != nil {
		return false, err
	}
	return c.n.authorized[c.key], nil
}

func (c *fakeConn) Disconnect() error {
	c.once.Do(func() {
		c.n.mu.Lock()
		c.n.open--
		c.n.openByKey[c.key]--
		c.n.mu.Unlock()
	})
	return nil
}
