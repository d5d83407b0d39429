package memes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSubmissionNotFound indicates that no submission exists for the identifier.
	ErrSubmissionNotFound = errors.New("memes: submission not found")
	// ErrSubmissionNotUpvotable indicates that the submission is not active or has no token mint.
	ErrSubmissionNotUpvotable = errors.New("memes: submission not active")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew       = "memes.service.new"
	opCreatePending    = "memes.create_pending"
	opConfirmCreation  = "memes.confirm_creation"
	opGetSubmission    = "memes.get_submission"
	opUpvoteTarget     = "memes.upvote_target"
	opRecordUpvote     = "memes.record_upvote"
	opListActive       = "memes.list_active"
	opSummary          = "memes.summary"
	opPing             = "memes.ping"
	reasonMissingDB    = "missing_database"
	reasonInvalidInput = "invalid_input"
	reasonQueryFailed  = "query_failed"
	reasonInsertFailed = "insert_failed"
	reasonUpsertFailed = "upsert_failed"
	reasonNotFound     = "not_found"
	reasonNotUpvotable = "not_upvotable"
	reasonIDFailed     = "id_generation_failed"

	defaultListLimit = 100
	maxListLimit     = 500
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Logger     *zap.Logger
}

type IDProvider interface {
	NewID() (SubmissionID, error)
}

// Service persists submissions and upvotes.
type Service struct {
	db         *gorm.DB
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDB, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreatePending inserts a new pending submission with a freshly issued identifier.
func (s *Service) CreatePending(ctx context.Context, memo Memo, userPubKey string) (Submission, error) {
	if s.db == nil {
		return Submission{}, newServiceError(opCreatePending, reasonMissingDB, errMissingDatabase)
	}
	userPubKey = strings.TrimSpace(userPubKey)
	if userPubKey == "" {
		return Submission{}, newServiceError(opCreatePending, reasonInvalidInput, fmt.Errorf("%w: user public key", ErrMissingField))
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreatePending, reasonIDFailed, err)
		return Submission{}, newServiceError(opCreatePending, reasonIDFailed, err)
	}

	submission := Submission{
		ID:         id.String(),
		Memo:       memo.String(),
		Status:     StatusPending,
		UserPubKey: &userPubKey,
	}
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opCreatePending, reasonInsertFailed, err, zap.String("submission_id", submission.ID))
		return Submission{}, newServiceError(opCreatePending, reasonInsertFailed, err)
	}
	return submission, nil
}

// ConfirmCreation marks the submission active with its mint and creation
// transaction, inserting the row when no pending submission exists.
// Repeated calls overwrite the previous confirmation.
func (s *Service) ConfirmCreation(ctx context.Context, confirmation CreationConfirmation) (Submission, error) {
	if s.db == nil {
		return Submission{}, newServiceError(opConfirmCreation, reasonMissingDB, errMissingDatabase)
	}
	txSignature := strings.TrimSpace(confirmation.TxSignature)
	mintAddress := strings.TrimSpace(confirmation.MintAddress)
	if confirmation.SubmissionID == "" || txSignature == "" || mintAddress == "" {
		return Submission{}, newServiceError(opConfirmCreation, reasonInvalidInput, ErrMissingField)
	}

	submission := Submission{
		ID:         confirmation.SubmissionID.String(),
		Status:     StatusActive,
		TokenMint:  &mintAddress,
		CreationTx: &txSignature,
	}
	updateColumns := []string{"status", "token_mint", "creation_tx", "updated_at"}
	if confirmation.Memo != nil {
		submission.Memo = *confirmation.Memo
		updateColumns = append(updateColumns, "memo")
	}

	var stored Submission
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(&submission).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", submission.ID).Take(&stored).Error
	})
	if txErr != nil {
		s.logError(opConfirmCreation, reasonUpsertFailed, txErr, zap.String("submission_id", submission.ID))
		return Submission{}, newServiceError(opConfirmCreation, reasonUpsertFailed, txErr)
	}

	s.loggerOrDefault().Info("submission activated",
		zap.String("submission_id", stored.ID),
		zap.String("token_mint", mintAddress))
	return stored, nil
}

// Get loads a single submission.
func (s *Service) Get(ctx context.Context, id SubmissionID) (Submission, error) {
	if s.db == nil {
		return Submission{}, newServiceError(opGetSubmission, reasonMissingDB, errMissingDatabase)
	}
	var submission Submission
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).Take(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Submission{}, newServiceError(opGetSubmission, reasonNotFound, ErrSubmissionNotFound)
	}
	if err != nil {
		s.logError(opGetSubmission, reasonQueryFailed, err, zap.String("submission_id", id.String()))
		return Submission{}, newServiceError(opGetSubmission, reasonQueryFailed, err)
	}
	return submission, nil
}

// UpvoteTarget returns the submission when it can receive buy transactions.
func (s *Service) UpvoteTarget(ctx context.Context, id SubmissionID) (Submission, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			return Submission{}, newServiceError(opUpvoteTarget, reasonNotFound, ErrSubmissionNotFound)
		}
		return Submission{}, err
	}
	if !submission.Upvotable() {
		return Submission{}, newServiceError(opUpvoteTarget, reasonNotUpvotable, ErrSubmissionNotUpvotable)
	}
	return submission, nil
}

// RecordUpvote appends an upvote row. The referenced submission is not
// checked and identical confirmations each add a row.
func (s *Service) RecordUpvote(ctx context.Context, confirmation UpvoteConfirmation) (Upvote, error) {
	if s.db == nil {
		return Upvote{}, newServiceError(opRecordUpvote, reasonMissingDB, errMissingDatabase)
	}
	upvote := Upvote{
		SubmissionID: confirmation.SubmissionID.String(),
		UserPubKey:   strings.TrimSpace(confirmation.UserPubKey),
		TxSig:        strings.TrimSpace(confirmation.TxSignature),
	}
	if upvote.SubmissionID == "" || upvote.UserPubKey == "" || upvote.TxSig == "" {
		return Upvote{}, newServiceError(opRecordUpvote, reasonInvalidInput, ErrMissingField)
	}
	if err := s.db.WithContext(ctx).Create(&upvote).Error; err != nil {
		s.logError(opRecordUpvote, reasonInsertFailed, err, zap.String("submission_id", upvote.SubmissionID))
		return Upvote{}, newServiceError(opRecordUpvote, reasonInsertFailed, err)
	}
	return upvote, nil
}

// ListActive returns active submissions with their upvote counts, newest first.
func (s *Service) ListActive(ctx context.Context, limit int) ([]SubmissionSummary, error) {
	if s.db == nil {
		return nil, newServiceError(opListActive, reasonMissingDB, errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var summaries []SubmissionSummary
	err := s.summaryQuery(ctx).
		Where("submissions.status = ?", StatusActive).
		Order("submissions.created_at DESC").
		Limit(limit).
		Scan(&summaries).Error
	if err != nil {
		s.logError(opListActive, reasonQueryFailed, err)
		return nil, newServiceError(opListActive, reasonQueryFailed, err)
	}
	return summaries, nil
}

// Summary returns one submission with its upvote count.
func (s *Service) Summary(ctx context.Context, id SubmissionID) (SubmissionSummary, error) {
	if s.db == nil {
		return SubmissionSummary{}, newServiceError(opSummary, reasonMissingDB, errMissingDatabase)
	}
	var summaries []SubmissionSummary
	err := s.summaryQuery(ctx).
		Where("submissions.id = ?", id.String()).
		Scan(&summaries).Error
	if err != nil {
		s.logError(opSummary, reasonQueryFailed, err, zap.String("submission_id", id.String()))
		return SubmissionSummary{}, newServiceError(opSummary, reasonQueryFailed, err)
	}
	if len(summaries) == 0 {
		return SubmissionSummary{}, newServiceError(opSummary, reasonNotFound, ErrSubmissionNotFound)
	}
	return summaries[0], nil
}

// Ping verifies the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return newServiceError(opPing, reasonMissingDB, errMissingDatabase)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return newServiceError(opPing, "handle_failed", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return newServiceError(opPing, "ping_failed", err)
	}
	return nil
}

func (s *Service) summaryQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("submissions").
		Select("submissions.*, COUNT(upvotes.id) AS upvote_count").
		Joins("LEFT JOIN upvotes ON upvotes.submission_id = submissions.id").
		Group("submissions.id")
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("memes service error", attrs...)
}
