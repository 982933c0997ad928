//go:build windows

package install

import (
	"fmt"
	"os/exec"
	"strings"
)

// PlatformGranter grants Everyone full control through icacls.
type PlatformGranter struct{}

func (PlatformGranter) GrantFullAccess(path string) error {
	out, err := exec.Command("icacls", path, "/grant", "Everyone:F", "/T", "/C", "/Q").CombinedOutput()
	if err != nil {
		return &PermissionError{Path: path, Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}
