package script

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// FileName derives the export file name of an artifact, e.g.
// "User Login - JAVA" becomes "User_Login_-_JAVA.java".
func FileName(a Artifact) string {
	name := a.FlowName
	if strings.TrimSpace(name) == "" {
		name = a.FlowID
	}
	base := fmt.Sprintf("%s - %s", strings.TrimSpace(name), strings.ToUpper(string(a.Language)))
	return unsafeFileChars.ReplaceAllString(base, "_") + a.Language.Extension()
}
