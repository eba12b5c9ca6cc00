package game

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const generatedRoomIDLength = 8

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,32}$`)

func IsValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// NewRoomID returns a short random id that is easy to share
func NewRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:generatedRoomIDLength]
}
