package auth

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateRoomRequest carries the fields needed to open a room.
// Passphrases are optional: an open room has none.
type CreateRoomRequest struct {
	Username   string  `validate:"required,min=3,max=24,alphanum"`
	Policy     string  `validate:"required,oneof=instant owner_approval democratic_voting"`
	IsDemo     bool    `validate:"-"`
	Passphrase *string `validate:"omitempty,min=4,max=72"`
}

type JoinRoomRequest struct {
	Code       string  `validate:"required,len=6,alphanum,uppercase"`
	Username   string  `validate:"required,min=3,max=24,alphanum"`
	Passphrase *string `validate:"omitempty,max=72"`
}

func ValidateCreateRoom(req CreateRoomRequest) error {
	return validate.Struct(req)
}

func ValidateJoinRoom(req JoinRoomRequest) error {
	return validate.Struct(req)
}
