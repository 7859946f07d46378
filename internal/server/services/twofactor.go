package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/twofactor"
)

// TwoFactorService drives the per-user TOTP enrollment state machine:
// DISABLED -> PENDING (secret stored, unconfirmed) -> ENABLED -> DISABLED.
type TwoFactorService struct {
	repos  repomanager.RepositoryManager
	hasher *cryptox.PasswordHasher
	audit  *auditor
	log    logging.Logger
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTwoFactorService(m repomanager.RepositoryManager, hasher *cryptox.PasswordHasher, encryptionKey, issuer string, log logging.Logger) *TwoFactorService {
	log = log.With("module", "twofactor")
	return &TwoFactorService{
		repos:  m,
		hasher: hasher,
		audit:  &auditor{repos: m, log: log},
		log:    log,
		key:    cryptox.NormalizeKey(encryptionKey, 32),
		issuer: issuer,
		now:    time.Now,
	}
}

// Initiate issues a new secret and stores it encrypted in the PENDING state.
// Calling it again while PENDING replaces the secret.
func (s *TwoFactorService) Initiate(ctx context.Context, userID string) (*twofactor.Enrollment, error) {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}

	enrollment, err := twofactor.NewEnrollment(s.issuer, user.Email)
	if err != nil {
		return nil, internalError(ctx, s.log, "generate totp secret", err)
	}

	envelope, err := cryptox.EncryptPII(enrollment.Secret, s.key)
	if err != nil {
		return nil, internalError(ctx, s.log, "encrypt totp secret", err)
	}

	if err := s.repos.Users(s.repos.Conn()).SetTwoFactor(ctx, user.ID, false, envelope); err != nil {
		return nil, internalError(ctx, s.log, "store pending totp secret", err)
	}

	return enrollment, nil
}

// Confirm verifies code against the pending secret, enables 2FA and returns
// ten fresh backup codes. The plaintext codes are never retrievable again.
func (s *TwoFactorService) Confirm(ctx context.Context, userID, code string, client ClientInfo) ([]string, error) {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}
	if !user.TwoFactorPending() {
		return nil, common.ErrTwoFactorNotPending
	}

	secret, err := cryptox.DecryptPII(user.TwoFactorSecret, s.key)
	if err != nil {
		return nil, internalError(ctx, s.log, "decrypt pending totp secret", err)
	}
	if !twofactor.Verify(code, secret, s.now()) {
		return nil, common.ErrInvalidTwoFactorCode
	}

	codes, err := twofactor.GenerateBackupCodes()
	if err != nil {
		return nil, internalError(ctx, s.log, "generate backup codes", err)
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = cryptox.HashOneWay(c)
	}

	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).SetTwoFactor(ctx, user.ID, true, user.TwoFactorSecret); err != nil {
			return err
		}
		if err := s.repos.BackupCodes(tx).DeleteForUser(ctx, user.ID); err != nil {
			return err
		}
		if err := s.repos.BackupCodes(tx).CreateMany(ctx, user.ID, hashes); err != nil {
			return err
		}
		return s.audit.recordTx(ctx, tx, user.ID, models.ActionTwoFactorEnable, client, nil)
	})
	if err != nil {
		return nil, internalError(ctx, s.log, "enable two-factor", err)
	}

	return codes, nil
}

// Disable requires the account password, then clears the secret and purges
// the backup codes.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string, client ClientInfo) error {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return common.ErrInvalidCredentials
	}
	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.ErrInvalidCredentials
	}

	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).SetTwoFactor(ctx, user.ID, false, ""); err != nil {
			return err
		}
		if err := s.repos.BackupCodes(tx).DeleteForUser(ctx, user.ID); err != nil {
			return err
		}
		return s.audit.recordTx(ctx, tx, user.ID, models.ActionTwoFactorDisable, client, nil)
	})
	if err != nil {
		return internalError(ctx, s.log, "disable two-factor", err)
	}

	return nil
}

// ConsumeBackupCode burns code for userID. It reports true only if an unused
// matching code existed.
func (s *TwoFactorService) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	ok, err := s.repos.BackupCodes(s.repos.Conn()).Consume(context.WithoutCancel(ctx), userID, cryptox.HashOneWay(code))
	if err != nil {
		return false, internalError(ctx, s.log, "consume backup code", err)
	}
	return ok, nil
}

// VerifyLoginCode checks a second factor presented at login: a TOTP code for
// the user's enabled secret, or an 8-digit backup code.
func (s *TwoFactorService) VerifyLoginCode(ctx context.Context, user *models.User, code string, client ClientInfo) (bool, error) {
	secret, err := cryptox.DecryptPII(user.TwoFactorSecret, s.key)
	if err != nil {
		return false, internalError(ctx, s.log, "decrypt totp secret", err)
	}
	if twofactor.Verify(code, secret, s.now()) {
		return true, nil
	}
	if !twofactor.IsBackupCodeFormat(code) {
		return false, nil
	}

	ok, err := s.ConsumeBackupCode(ctx, user.ID, code)
	if err != nil || !ok {
		return false, err
	}

	remaining, err := s.repos.BackupCodes(s.repos.Conn()).CountForUser(ctx, user.ID)
	if err != nil {
		s.log.Warn(ctx, "count backup codes", "user_id", user.ID, "error", err)
	}
	s.audit.record(ctx, user.ID, models.ActionBackupCodeUsed, models.AuditSuccess, client, map[string]any{"remaining": remaining})
	return true, nil
}
