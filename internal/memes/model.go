package memes

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status enumerates the submission lifecycle states.
type Status string

const (
	// StatusPending marks a submission awaiting its on-chain mint confirmation.
	StatusPending Status = "pending"
	// StatusActive marks a submission whose mint transaction was confirmed.
	StatusActive Status = "active"
)

const (
	// MinMemoLength is the minimum memo length, in characters, accepted for new submissions.
	MinMemoLength = 10

	maxIdentifierLength = 190
)

var (
	// ErrInvalidSubmissionID indicates that a submission identifier is empty or exceeds storage bounds.
	ErrInvalidSubmissionID = errors.New("memes: invalid submission id")
	// ErrInvalidMemo indicates that a memo is shorter than MinMemoLength.
	ErrInvalidMemo = errors.New("memes: invalid memo")
	// ErrMissingField indicates that a required value was not supplied.
	ErrMissingField = errors.New("memes: missing required field")
)

// SubmissionID represents a validated submission identifier.
type SubmissionID string

// NewSubmissionID validates raw input and returns a SubmissionID.
func NewSubmissionID(rawInput string) (SubmissionID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSubmissionID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSubmissionID, maxIdentifierLength)
	}
	return SubmissionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id SubmissionID) String() string {
	return string(id)
}

// Memo is a submission description of at least MinMemoLength characters.
type Memo string

// NewMemo validates raw input and returns a Memo.
func NewMemo(rawInput string) (Memo, error) {
	if count := utf8.RuneCountInString(rawInput); count < MinMemoLength {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrInvalidMemo, count, MinMemoLength)
	}
	return Memo(rawInput), nil
}

// String returns the memo text.
func (m Memo) String() string {
	return string(m)
}

// Submission is a proposed meme token tracked from pending to active.
type Submission struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	Memo       string    `gorm:"column:memo;type:text;not null;default:''"`
	Status     Status    `gorm:"column:status;size:16;not null;index:idx_submissions_status_created,priority:1"`
	UserPubKey *string   `gorm:"column:user_pubkey;size:44"`
	TokenMint  *string   `gorm:"column:token_mint;size:44"`
	CreationTx *string   `gorm:"column:creation_tx;size:88"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index:idx_submissions_status_created,priority:2"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// Upvotable reports whether buy transactions may be built against the submission.
func (s Submission) Upvotable() bool {
	return s.Status == StatusActive && s.TokenMint != nil && strings.TrimSpace(*s.TokenMint) != ""
}

// Upvote is an append-only record of a confirmed buy against a submission.
type Upvote struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SubmissionID string    `gorm:"column:submission_id;size:190;not null;index"`
	UserPubKey   string    `gorm:"column:user_pubkey;size:44;not null"`
	TxSig        string    `gorm:"column:tx_sig;size:88;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Upvote) TableName() string {
	return "upvotes"
}

// CreationConfirmation carries the values reported once a mint transaction lands.
type CreationConfirmation struct {
	SubmissionID SubmissionID
	TxSignature  string
	MintAddress  string
	// Memo replaces the stored memo when non-nil.
	Memo *string
}

// UpvoteConfirmation carries the values reported once a buy transaction lands.
type UpvoteConfirmation struct {
	SubmissionID SubmissionID
	UserPubKey   string
	TxSignature  string
}

// SubmissionSummary pairs a submission with its upvote tally.
type SubmissionSummary struct {
	Submission
	UpvoteCount int64 `gorm:"column:upvote_count"`
}
