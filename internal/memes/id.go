package memes

import "github.com/google/uuid"

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 submission identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (SubmissionID, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return SubmissionID(value.String()), nil
}
