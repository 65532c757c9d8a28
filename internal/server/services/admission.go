package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/auth"
	"github.com/dmitrijs2005/showroom/internal/server/config"
	"github.com/dmitrijs2005/showroom/internal/server/ledger"
	"github.com/dmitrijs2005/showroom/internal/server/metrics"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/dmitrijs2005/showroom/internal/server/repositories/repomanager"
)

// Client identifies the caller of a verify request.
type Client struct {
	IP        string
	UserAgent string
}

// Audit reasons, also used as the outcome label of the verify metric.
const (
	OutcomeSuccess   = "success"
	OutcomeMalformed = "malformed"
	OutcomeNotFound  = "not_found"
	OutcomeInactive  = "inactive"
	OutcomeExpired   = "expired"
	OutcomeLocked    = "locked_out"
	OutcomeMismatch  = "password_mismatch"
	OutcomeError     = "error"
)

// AdmissionService exchanges a share password for a share token while
// bounding brute force per (client IP, share code).
type AdmissionService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	ledger        ledger.Ledger
	log           logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
	maxAttempts   int
	now           func() time.Time
}

func NewAdmissionService(db *sql.DB, m repomanager.RepositoryManager, l ledger.Ledger, cfg *config.Config, log logging.Logger) *AdmissionService {
	return &AdmissionService{
		db:            db,
		repomanager:   m,
		ledger:        l,
		log:           log.With("module", "admission"),
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.ShareTokenValidityDuration,
		maxAttempts:   cfg.MaxFailedAttempts,
		now:           time.Now,
	}
}

// Verify checks password against the share reachable by code.
//
// Order matters: malformed input is rejected before any storage access, and
// a locked-out caller is rejected before the share is loaded or the password
// compared. A wrong password yields *common.PasswordMismatchError.
func (s *AdmissionService) Verify(ctx context.Context, code, password string, client Client) (*models.VerifyResult, error) {
	res, outcome, err := s.verify(ctx, code, password, client)
	metrics.VerifyAttempts.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *AdmissionService) verify(ctx context.Context, code, password string, client Client) (*models.VerifyResult, string, error) {
	if err := ValidateShareCode(code); err != nil {
		return nil, OutcomeMalformed, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, OutcomeMalformed, err
	}

	locked, err := s.ledger.IsLocked(ctx, client.IP, code)
	if err != nil {
		return nil, OutcomeError, s.fail(ctx, "lockout check failed", err, code, client)
	}
	if locked {
		s.audit(ctx, "", code, client, OutcomeLocked)
		return nil, OutcomeLocked, common.ErrLockedOut
	}

	share, err := s.repomanager.Shares(s.db).GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.audit(ctx, "", code, client, OutcomeNotFound)
			return nil, OutcomeNotFound, common.ErrShareNotFound
		}
		return nil, OutcomeError, s.fail(ctx, "share lookup failed", err, code, client)
	}

	now := s.now()
	if !share.Active {
		s.audit(ctx, share.ID, code, client, OutcomeInactive)
		return nil, OutcomeInactive, common.ErrShareInactive
	}
	if share.IsExpired(now) {
		s.audit(ctx, share.ID, code, client, OutcomeExpired)
		return nil, OutcomeExpired, common.ErrShareExpired
	}

	if !passwordMatches(share.PasswordHash, password) {
		return s.rejectPassword(ctx, share, client)
	}

	if err := s.ledger.Reset(ctx, client.IP, code); err != nil {
		return nil, OutcomeError, s.fail(ctx, "failure counter reset failed", err, code, client)
	}

	s.audit(ctx, share.ID, code, client, OutcomeSuccess)

	if err := s.repomanager.Shares(s.db).RecordView(ctx, share.ID, now); err != nil {
		return nil, OutcomeError, s.fail(ctx, "view count update failed", err, code, client)
	}

	token, err := auth.IssueShareToken(share.Code, share.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, OutcomeError, s.fail(ctx, "token issue failed", err, code, client)
	}

	s.log.Info(ctx, "share verified", "code", code, "ip", client.IP)

	return &models.VerifyResult{
		Token:     token,
		ExpiresIn: int64(s.tokenValidity / time.Second),
	}, OutcomeSuccess, nil
}

func (s *AdmissionService) rejectPassword(ctx context.Context, share *models.Share, client Client) (*models.VerifyResult, string, error) {
	count, err := s.ledger.RecordFailure(ctx, client.IP, share.Code)
	if err != nil {
		return nil, OutcomeError, s.fail(ctx, "failure counter increment failed", err, share.Code, client)
	}

	if count >= s.maxAttempts {
		if err := s.ledger.Lock(ctx, client.IP, share.Code); err != nil {
			return nil, OutcomeError, s.fail(ctx, "lockout failed", err, share.Code, client)
		}
		metrics.Lockouts.Inc()
		s.log.Warn(ctx, "share locked out", "code", share.Code, "ip", client.IP, "failures", count)
	}

	s.audit(ctx, share.ID, share.Code, client, OutcomeMismatch)

	return nil, OutcomeMismatch, &common.PasswordMismatchError{Remaining: max(0, s.maxAttempts-count)}
}

func (s *AdmissionService) fail(ctx context.Context, msg string, err error, code string, client Client) error {
	s.log.Error(ctx, msg, "code", code, "ip", client.IP, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}

// audit appends an access log entry. A failed write is logged and dropped.
func (s *AdmissionService) audit(ctx context.Context, shareID, code string, client Client, outcome string) {
	entry := &models.AccessLogEntry{
		ShareID:   shareID,
		ShareCode: code,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
		Success:   outcome == OutcomeSuccess,
	}
	if !entry.Success {
		entry.Reason = outcome
	}

	if err := s.repomanager.AccessLog(s.db).Append(ctx, entry); err != nil {
		s.log.Warn(ctx, "access log write failed", "code", code, "outcome", outcome, "error", err)
	}
}
