package crypto

import "errors"

var (
	ErrFloatNotAllowed  = errors.New("float values are not allowed in canonical json")
	ErrKeyCollision     = errors.New("normalized map key collision")
	ErrInvalidSeedSize  = errors.New("invalid ed25519 seed size")
	ErrInvalidDigestLen = errors.New("invalid digest length")
	ErrEmptyKeyFile     = errors.New("empty key file")
)
