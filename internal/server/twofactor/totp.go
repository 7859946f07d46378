// Package twofactor implements the stateless half of TOTP second factor:
// secret provisioning, QR rendering, code checks and backup code minting.
// Enrollment state lives in the services package.
package twofactor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time step.
	Period = 30
	// Skew is how many steps either side of now are accepted.
	Skew = 1

	BackupCodeCount  = 10
	backupCodeMin    = 10000000
	backupCodeMax    = 99999999
	qrCodeSize       = 200
	qrCodeDataPrefix = "data:image/png;base64,"
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enrollment is everything the user needs to add the account to an
// authenticator app. It is shown once and never again.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
	QRCode          string `json:"qrCode"`
}

// NewEnrollment generates a fresh base32 secret labelled with issuer and
// account, plus its otpauth:// URI and a PNG QR code as a data URL.
func NewEnrollment(issuer, account string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	qr, err := QRCodeDataURL(key)
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
	}, nil
}

// QRCodeDataURL renders the key's URI as a 200x200 PNG data URL.
func QRCodeDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}

	return qrCodeDataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify reports whether code is valid for secret at time at, allowing one
// step of clock drift in either direction.
func Verify(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts)
	return err == nil && ok
}

// GenerateCode returns the code for secret at time at. The login path never
// needs it; callers are tests driving an enrolled account.
func GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, validateOpts)
}

// GenerateBackupCodes returns BackupCodeCount random 8-digit codes.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for range BackupCodeCount {
		n, err := cryptox.SecureRandomInt(backupCodeMin, backupCodeMax)
		if err != nil {
			return nil, err
		}
		codes = append(codes, strconv.FormatInt(n, 10))
	}
	return codes, nil
}

// IsBackupCodeFormat reports whether code looks like a backup code rather
// than a TOTP code.
func IsBackupCodeFormat(code string) bool {
	if len(code) != 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
