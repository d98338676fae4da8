// Package remap rewrites the trigger key at the HID level when the OS would
// otherwise deliver it as a modifier. Caps Lock on macOS never produces
// key-down/key-up events, so it is remapped to F18 and the tap matches F18.
package remap

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"hyperkey/internal/keys"
)

// Target is the key remapped triggers arrive as.
const Target = keys.KeyF18

// Mapping is one HID usage remap as hidutil stores it.
type Mapping struct {
	Src uint64 `json:"HIDKeyboardModifierMappingSrc"`
	Dst uint64 `json:"HIDKeyboardModifierMappingDst"`
}

type property struct {
	UserKeyMapping []Mapping `json:"UserKeyMapping"`
}

// Runner executes the platform remapping tool with a property payload.
type Runner func(payload string) error

// Getter reads the mappings currently installed on the system.
type Getter func() ([]Mapping, error)

// Remapper installs and removes the trigger key mapping. Mappings the user
// had before the first Apply are kept and put back by Clear.
type Remapper struct {
	mu      sync.Mutex
	get     Getter
	run     Runner
	needed  func(keys.Key) bool
	applied bool
	saved   []Mapping
}

// New creates a Remapper for this platform.
func New() *Remapper {
	return &Remapper{get: platformGetter, run: platformRunner, needed: platformNeeds}
}

// NewWithTool creates a Remapper that always remaps native modifier keys,
// reading the system mappings through get and writing them through run.
func NewWithTool(get Getter, run Runner) *Remapper {
	return &Remapper{get: get, run: run, needed: keys.NativeModifier}
}

// Payload builds the property JSON that keeps base and maps src onto dst.
// A mapping in base for the same src is replaced. With an empty src the
// payload is base alone.
func Payload(base []Mapping, src, dst keys.Key) (string, error) {
	p := property{UserKeyMapping: []Mapping{}}
	var from uint64
	if src != "" {
		var ok bool
		if from, ok = keys.UsageCode(src); !ok {
			return "", fmt.Errorf("remap: %s has no HID usage", src)
		}
	}
	for _, m := range base {
		if src != "" && m.Src == from {
			continue
		}
		p.UserKeyMapping = append(p.UserKeyMapping, m)
	}
	if src != "" {
		to, ok := keys.UsageCode(dst)
		if !ok {
			return "", fmt.Errorf("remap: %s has no HID usage", dst)
		}
		p.UserKeyMapping = append(p.UserKeyMapping, Mapping{Src: from, Dst: to})
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var (
	entryPattern = regexp.MustCompile(`\{[^{}]*\}`)
	fieldPattern = regexp.MustCompile(`HIDKeyboardModifierMapping(Src|Dst)\s*=\s*(\d+)`)
)

// ParseUserKeyMapping parses the output of
// `hidutil property --get UserKeyMapping`. "(null)" means no mappings.
func ParseUserKeyMapping(out string) ([]Mapping, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "(null)" {
		return nil, nil
	}
	var mappings []Mapping
	for _, entry := range entryPattern.FindAllString(out, -1) {
		var m Mapping
		var haveSrc, haveDst bool
		for _, f := range fieldPattern.FindAllStringSubmatch(entry, -1) {
			v, err := strconv.ParseUint(f[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("remap: parse %s: %w", f[0], err)
			}
			if f[1] == "Src" {
				m.Src, haveSrc = v, true
			} else {
				m.Dst, haveDst = v, true
			}
		}
		if !haveSrc || !haveDst {
			return nil, fmt.Errorf("remap: incomplete mapping %q", entry)
		}
		mappings = append(mappings, m)
	}
	if mappings == nil && !strings.HasPrefix(out, "(") {
		return nil, fmt.Errorf("remap: unexpected hidutil output %q", out)
	}
	return mappings, nil
}

// Apply prepares k as the trigger and returns the key the tap has to match.
// Keys that need no remap come back unchanged, and an earlier mapping is cleared.
func (r *Remapper) Apply(k keys.Key) (keys.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k == "" || !r.needed(k) {
		if err := r.clearLocked(); err != nil {
			return k, err
		}
		return k, nil
	}

	saved := r.saved
	if !r.applied {
		current, err := r.get()
		if err != nil {
			return k, fmt.Errorf("read key mapping: %w", err)
		}
		saved = current
	}
	payload, err := Payload(saved, k, Target)
	if err != nil {
		return k, err
	}
	if err := r.run(payload); err != nil {
		return k, fmt.Errorf("remap %s to %s: %w", k, Target, err)
	}
	r.applied = true
	r.saved = saved
	log.Infof("remap: %s now arrives as %s", k, Target)
	return Target, nil
}

// Clear puts back the mappings that were installed before Apply, if any.
func (r *Remapper) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearLocked()
}

func (r *Remapper) clearLocked() error {
	if !r.applied {
		return nil
	}
	payload, err := Payload(r.saved, "", "")
	if err != nil {
		return err
	}
	if err := r.run(payload); err != nil {
		return fmt.Errorf("clear key mapping: %w", err)
	}
	log.WithField("restored", len(r.saved)).Info("remap: key mapping cleared")
	r.applied = false
	r.saved = nil
	return nil
}
