package models

import "time"

type AuditAction string

const (
	ActionRegister         AuditAction = "REGISTER"
	ActionLogin            AuditAction = "LOGIN"
	ActionLogout           AuditAction = "LOGOUT"
	ActionTokenRefresh     AuditAction = "TOKEN_REFRESH"
	ActionEmailVerify      AuditAction = "EMAIL_VERIFY"
	ActionTwoFactorEnable  AuditAction = "2FA_ENABLED"
	ActionTwoFactorDisable AuditAction = "2FA_DISABLED"
	ActionBackupCodeUsed   AuditAction = "2FA_BACKUP_CODE_USED"
	ActionAPIKeyCreate     AuditAction = "API_KEY_CREATE"
	ActionAPIKeyDeactivate AuditAction = "API_KEY_DEACTIVATE"
	ActionAPIKeyDelete     AuditAction = "API_KEY_DELETE"
	ActionProfileUpdate    AuditAction = "PROFILE_UPDATE"
	ActionPasswordChange   AuditAction = "PASSWORD_CHANGE"
	ActionPasswordReset    AuditAction = "PASSWORD_RESET"
	ActionAccountDelete    AuditAction = "ACCOUNT_DELETE"
	ActionAccountUnlock    AuditAction = "ACCOUNT_UNLOCK"
)

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

// AuditLog is an append-only event. UserID is empty for failures that
// happen before a user is identified.
type AuditLog struct {
	ID        string
	UserID    string
	Action    AuditAction
	Status    AuditStatus
	Resource  string
	Metadata  map[string]any
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
