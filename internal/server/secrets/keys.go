package secrets

import "strings"

// Key prefixes. Each workflow owns its prefix and deletes its own keys on
// successful redemption.
const (
	verificationPrefix = "verification:"
	roleChangePrefix   = "rolechange:"
	failedLoginPrefix  = "failed:login:"
	lockoutPrefix      = "blocked:login:"
)

// VerificationKey holds the pending verification code for an email.
// One live code per email: issuing a new code overwrites the old one.
func VerificationKey(email string) string {
	return verificationPrefix + strings.ToLower(email)
}

// RoleChangeKey holds a pending role-change code for the
// (admin, target, role) triple. Distinct triples coexist independently.
func RoleChangeKey(adminEmail, targetEmail, role string) string {
	return roleChangePrefix + strings.ToLower(adminEmail) + ":" + strings.ToLower(targetEmail) + ":" + role
}

// FailedLoginKey counts failed attempts per client IP and email.
func FailedLoginKey(ip, email string) string {
	return failedLoginPrefix + ip + ":" + strings.ToLower(email)
}

// LockoutKey flags a locked-out IP and email pair.
func LockoutKey(ip, email string) string {
	return lockoutPrefix + ip + ":" + strings.ToLower(email)
}
