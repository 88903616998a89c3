package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/hollis/taskpilot/internal/database/models"
	"gorm.io/gorm"
)

// Join-code alphabet drops 0/O/1/I/L so codes survive being read aloud.
const joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
const joinCodeLength = 6

func randomJoinCode() (string, error) {
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(joinCodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// generateJoinCode returns a code not currently held by any project. The
// unique index on join_code is the backstop if two creations race past the
// existence check.
func generateJoinCode(db *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomJoinCode()
		if err != nil {
			return "", err
		}
		var existing models.Project
		err = db.Where("join_code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique join code")
}
