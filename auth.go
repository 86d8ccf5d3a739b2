package main

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cardscan/models"
)

const minPasswordLen = 6

var (
	errUserExists         = errors.New("user already exists")
	errInvalidCredentials = errors.New("invalid credentials")
)

// registerUser creates an account with the default role. Role lookup and
// user insert run in one transaction; concurrent registrations of the same
// username collapse into errUserExists via the unique constraint.
func registerUser(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username required")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password too short (min %d)", minPasswordLen)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		role := models.Role{Name: models.RoleUser, Description: "regular user"}
		if err := tx.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("ensure default role: %v", err)
		}
		rid := role.ID
		user := models.User{Username: username, HashedPassword: hashed, RoleID: &rid}
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return errUserExists
			}
			return err
		}
		return nil
	})
}

// authenticateUser never distinguishes an unknown username from a wrong
// password.
func authenticateUser(username, password string) (models.User, error) {
	var user models.User
	if err := db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		return models.User{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return models.User{}, errInvalidCredentials
	}
	return user, nil
}

// isUniqueConstraintError matches Postgres duplicate-key failures by message;
// gorm does not surface a typed error for them.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
