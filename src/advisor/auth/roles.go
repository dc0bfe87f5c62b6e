package auth

import "strings"

// Role levels recognized by the system.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)

// roleRule maps a local-part prefix to a role. Rules are evaluated in order;
// first match wins, default is student.
type roleRule struct {
	prefixes []string
	role     string
}

var roleRules = []roleRule{
	{prefixes: []string{"admin."}, role: RoleAdmin},
	{prefixes: []string{"faculty.", "prof."}, role: RoleFaculty},
}

// DeriveRole resolves the role for an email. Applied once at issuance; the
// result is embedded in the token and never recomputed on verify.
func DeriveRole(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	local = strings.ToLower(local)
	for _, rule := range roleRules {
		for _, p := range rule.prefixes {
			if strings.HasPrefix(local, p) {
				return rule.role
			}
		}
	}
	return RoleStudent
}
