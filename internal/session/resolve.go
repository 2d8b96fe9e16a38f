package session

import "os"

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. CHATCORE_SESSION environment variable
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv("CHATCORE_SESSION"); env != "" {
		return env
	}
	return DefaultSessionName
}
