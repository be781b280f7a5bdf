package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrPathTraversal      = errors.New("path traversal is not allowed")
	ErrInvalidName        = errors.New("invalid file or folder name")
	ErrFileNotFound       = errors.New("file or folder not found")
	ErrAlreadyExists      = errors.New("file or folder already exists")
	ErrUnsupportedType    = errors.New("file type not supported for preview")
	ErrTokenMissing       = errors.New("token is missing")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenScope         = errors.New("token is not valid for this file")
	ErrIOFailure          = errors.New("storage i/o failure")
	ErrShortCodeExhausted = errors.New("could not allocate a free short code")
	ErrInvalidURL         = errors.New("invalid target url")
)
