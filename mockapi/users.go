package mockapi

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type User struct {
	ID           string    `json:"id"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	DateJoined   time.Time `json:"-"`
	LastLogin    time.Time `json:"-"`
}

// IsProfileCompleted reports whether the registration fields have been filled
func (u *User) IsProfileCompleted() bool {
	return u.FirstName != "" && u.LastName != "" && u.Username != ""
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UserRepo is an in-memory user store indexed by id, phone number and username
type UserRepo struct {
	users       map[string]*User
	phoneIDs    map[string]string // phone number to user id
	usernameIDs map[string]string // username to user id
	lock        sync.RWMutex
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		users:       make(map[string]*User),
		phoneIDs:    make(map[string]string),
		usernameIDs: make(map[string]string),
	}
}

// Upsert stores a copy of user, assigning an id when missing
func (ur *UserRepo) Upsert(user *User) (*User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Username != "" {
		if id, ok := ur.usernameIDs[user.Username]; ok && id != user.ID {
			return nil, ErrUsernameTaken
		}
	}
	if prev, ok := ur.users[user.ID]; ok && prev.Username != user.Username {
		delete(ur.usernameIDs, prev.Username)
	}

	u := *user
	ur.users[u.ID] = &u
	if u.PhoneNumber != "" {
		ur.phoneIDs[u.PhoneNumber] = u.ID
	}
	if u.Username != "" {
		ur.usernameIDs[u.Username] = u.ID
	}
	c := u
	return &c, nil
}

func (ur *UserRepo) GetByID(id string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.getLocked(id)
}

func (ur *UserRepo) GetByPhone(phone string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.getLocked(ur.phoneIDs[phone])
}

func (ur *UserRepo) GetByUsername(username string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.getLocked(ur.usernameIDs[username])
}

func (ur *UserRepo) getLocked(id string) (*User, error) {
	u, ok := ur.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}
