package auth

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// UserStore authenticates users against the database. When autoProvision is
// set, a first login with an allow-listed email creates the account; this
// mirrors the permissive demo credential store and is meant to be switched off
// once a real roster is loaded.
type UserStore struct {
	db            *gorm.DB
	autoProvision bool
}

func NewUserStore(db *gorm.DB, autoProvision bool) *UserStore {
	return &UserStore{db: db, autoProvision: autoProvision}
}

// Authenticate checks credentials and returns the stored user. The error is a
// single generic kind regardless of whether the email or the password failed.
func (u *UserStore) Authenticate(email, password string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user types.User
	err := u.db.Where("email = ?", email).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		if u.autoProvision {
			return u.provision(email, password)
		}
		return nil, types.E(types.KindUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, types.E(types.KindUnauthorized, "invalid credentials")
	}
	return &user, nil
}

func (u *UserStore) provision(email, password string) (*types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := types.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         DeriveRole(email),
	}
	if err := u.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	log.Printf("auth: provisioned %s as %s", email, user.Role)
	return &user, nil
}
