package commandmeta

import "strings"

type OutputPolicy uint8

const (
	OutputPolicyStructured OutputPolicy = iota
	OutputPolicyTextOnly
)

const rootName = "mobilectl"

// RequiresAccountPath reports whether the command talks to the management
// API and therefore needs a resolved account.
func RequiresAccountPath(commandPath string) bool {
	return strings.HasPrefix(strings.TrimSpace(commandPath), rootName+" mobile ")
}

func EmitsExecutionStatusPath(path string) bool {
	switch strings.TrimPrefix(strings.TrimSpace(path), rootName+" ") {
	case "account add",
		"account remove",
		"account rename",
		"account use",
		"mobile create",
		"mobile delete",
		"mobile restart",
		"mobile config set",
		"mobile table create",
		"mobile table update",
		"mobile table delete",
		"mobile data truncate",
		"mobile script upload",
		"mobile script delete",
		"mobile scale change",
		"mobile job create",
		"mobile job update",
		"mobile job delete":
		return true
	default:
		return false
	}
}

func OutputPolicyForPath(path string) OutputPolicy {
	normalized := strings.TrimPrefix(strings.TrimSpace(path), rootName+" ")
	switch {
	case normalized == "mobile script download":
		return OutputPolicyTextOnly
	case strings.HasPrefix(normalized, "completion "):
		return OutputPolicyTextOnly
	default:
		return OutputPolicyStructured
	}
}
