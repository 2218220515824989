package usecases

import "time"

// Messages returned to clients on success.
const (
	MsgRegisteredPendingVerification = "Registration successful. Please check your email to verify your account."
	MsgRegisteredAdmin               = "Admin registered successfully."
	MsgEmailVerified                 = "Email verified successfully. You can now log in."
	MsgVerificationResent            = "A new verification email has been sent."
	MsgPasswordChanged               = "Password changed successfully."
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultVerificationTTL = 15 * time.Minute
	DefaultResendCooldown  = 60 * time.Second
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest secret bcrypt accepts.
const MaxPasswordBytes = 72

const resendCooldownKeyPrefix = "verification:resend:"
