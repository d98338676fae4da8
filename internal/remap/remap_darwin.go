//go:build darwin

package remap

import (
	"fmt"
	"os/exec"
	"strings"

	"hyperkey/internal/keys"
)

func platformNeeds(k keys.Key) bool {
	return keys.NativeModifier(k)
}

func platformGetter() ([]Mapping, error) {
	out, err := exec.Command("/usr/bin/hidutil", "property", "--get", "UserKeyMapping").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("hidutil: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return ParseUserKeyMapping(string(out))
}

func platformRunner(payload string) error {
	out, err := exec.Command("/usr/bin/hidutil", "property", "--set", payload).CombinedOutput()
	if err != nil {
		return fmt.Errorf("hidutil: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
