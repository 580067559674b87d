package otp

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

var (
	NowFunc      = time.Now          // mockable
	generateFunc = core.RandomDigits // mockable

	// errors
	ErrCodeNotFound  = core.NewNotFoundError("otp code")
	ErrCodeMismatch  = core.NewValidationError(errors.New("code mismatch"))
	ErrResendTooSoon = core.NewValidationError(errors.New("please wait before requesting a new code"))
	ErrNotVerified   = core.NewPreconditionError("phone number has not been verified")
)

type (
	Repository interface {
		Create(ctx context.Context, code Code) (Code, error)
		// GetLatest returns the most recent code of (identifier, purpose) with the given verified flag.
		// For verified codes, consumed ones are ignored.
		GetLatest(ctx context.Context, identifier, purpose string, verified bool) (Code, error)
		// DeleteUnverified deletes every unverified code of (identifier, purpose).
		DeleteUnverified(ctx context.Context, identifier, purpose string) error
		IncrementAttempts(ctx context.Context, id int64) error
		MarkVerified(ctx context.Context, id int64, at time.Time) error
		MarkConsumed(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
		// DeleteExpired deletes the codes that expired before the given time and returns how many were deleted.
		DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	}

	Service struct {
		repo           Repository
		length         int
		ttl            time.Duration
		resendInterval time.Duration
		maxAttempts    int
		verifiedWindow time.Duration
		countryCode    string
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:           repo,
		length:         conf.OTP.Length,
		ttl:            conf.OTP.TTL,
		resendInterval: conf.OTP.ResendInterval,
		maxAttempts:    conf.OTP.MaxAttempts,
		verifiedWindow: conf.OTP.VerifiedWindow,
		countryCode:    conf.Academy.CountryCode,
	}
}

// Send generates a new code for (identifier, purpose). Previously issued unverified codes are superseded.
// Phone identifiers are stored in international form.
func (svc *Service) Send(ctx context.Context, identifier, purpose string) (Code, error) {
	identifier = core.NormalizePhone(identifier, svc.countryCode)
	now := NowFunc().UTC()

	last, err := svc.repo.GetLatest(ctx, identifier, purpose, false)
	if err != nil && errors.Cause(err) != ErrCodeNotFound {
		return Code{}, errors.Wrap(err, "getting latest code")
	}
	if err == nil && now.Sub(last.CreatedAt) < svc.resendInterval {
		return Code{}, ErrResendTooSoon
	}

	value, err := generateFunc(svc.length)
	if err != nil {
		return Code{}, errors.Wrap(err, "generating code")
	}
	if err = svc.repo.DeleteUnverified(ctx, identifier, purpose); err != nil {
		return Code{}, errors.Wrap(err, "superseding codes")
	}
	return svc.repo.Create(ctx, Code{
		Identifier: identifier,
		Code:       value,
		Purpose:    purpose,
		ExpiresAt:  now.Add(svc.ttl),
		CreatedAt:  now,
	})
}

// Verify checks the code against the active code of (identifier, purpose) and marks it verified.
// Codes are burnt once maxAttempts mismatches are reached.
func (svc *Service) Verify(ctx context.Context, identifier, value, purpose string) error {
	identifier = core.NormalizePhone(identifier, svc.countryCode)
	code, err := svc.repo.GetLatest(ctx, identifier, purpose, false)
	if err != nil {
		return err
	}

	now := NowFunc().UTC()
	if code.isExpired(now) || code.Attempts >= svc.maxAttempts {
		return ErrCodeNotFound
	}
	if subtle.ConstantTimeCompare([]byte(code.Code), []byte(value)) != 1 {
		if err = svc.repo.IncrementAttempts(ctx, code.ID); err != nil {
			return errors.Wrap(err, "incrementing attempts")
		}
		return ErrCodeMismatch
	}
	return svc.repo.MarkVerified(ctx, code.ID, now)
}

// RequireVerified returns the ID of the unconsumed code of (identifier, purpose) verified within the verified window.
func (svc *Service) RequireVerified(ctx context.Context, identifier, purpose string) (int64, error) {
	identifier = core.NormalizePhone(identifier, svc.countryCode)
	code, err := svc.repo.GetLatest(ctx, identifier, purpose, true)
	if err != nil {
		if errors.Cause(err) == ErrCodeNotFound {
			return 0, ErrNotVerified
		}
		return 0, err
	}
	if !code.VerifiedAt.Valid || NowFunc().UTC().Sub(code.VerifiedAt.Time) > svc.verifiedWindow {
		return 0, ErrNotVerified
	}
	return code.ID, nil
}

// Consume marks a verified code as used so it cannot gate another submission.
func (svc *Service) Consume(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	return svc.repo.MarkConsumed(ctx, id, NowFunc().UTC(), exec...)
}

// Purge deletes the codes expired before the given time that can no longer gate a submission.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.repo.DeleteExpired(ctx, before.UTC().Add(-svc.verifiedWindow))
}
