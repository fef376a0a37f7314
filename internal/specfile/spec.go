// Package specfile edits RPM spec files.
//
// Only the handful of edits needed to point a distribution spec at a
// generated source archive are supported. They operate on lines and leave
// everything they do not touch byte-for-byte intact.
package specfile

import (
	"fmt"
	"regexp"
	"strings"
)

// Header is prepended to every rewritten spec
const Header = "# NOTE: AUTO-GENERATED by rpmdistro-gitoverlay; DO NOT EDIT"

var (
	tagRe      = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)(\s*:\s*)(.*)$`)
	sectionRe  = regexp.MustCompile(`^%(description|package|prep|build|install|check|clean|files|changelog|pre|post|preun|postun|pretrans|posttrans|trigger\w*)\b`)
	setupRe    = regexp.MustCompile(`^%(setup|autosetup)\b`)
	setupDirRe = regexp.MustCompile(`\s-n\s*\S+`)
	patchTagRe = regexp.MustCompile(`(?i)^patch[0-9]*\s*:`)
	patchMacro = regexp.MustCompile(`^%patch[0-9]*\b`)
	changelog  = regexp.MustCompile(`^%changelog\s*$`)
)

// Spec is an in-memory spec file
type Spec struct {
	lines []string
	// trailing is set when the text ended with a newline
	trailing bool
}

// Parse splits spec text into lines
func Parse(text string) *Spec {
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}

	return &Spec{lines: lines, trailing: trailing}
}

// String returns the spec text
func (s *Spec) String() string {
	text := strings.Join(s.lines, "\n")
	if s.trailing || len(s.lines) > 0 {
		text += "\n"
	}

	return text
}

// preambleEnd returns the index of the first section line
func (s *Spec) preambleEnd() int {
	for i, line := range s.lines {
		if sectionRe.MatchString(line) {
			return i
		}
	}

	return len(s.lines)
}

func (s *Spec) findTag(name string) int {
	end := s.preambleEnd()
	for i := 0; i < end; i++ {
		m := tagRe.FindStringSubmatch(s.lines[i])
		if m != nil && strings.EqualFold(m[1], name) {
			return i
		}
	}

	return -1
}

// GetTag returns the value of a preamble tag
func (s *Spec) GetTag(name string) (string, bool) {
	i := s.findTag(name)
	if i < 0 {
		return "", false
	}

	m := tagRe.FindStringSubmatch(s.lines[i])

	return strings.TrimSpace(m[3]), true
}

// SetTag replaces the value of a preamble tag, keeping its spelling and
// alignment. A missing tag is added after Name.
func (s *Spec) SetTag(name, value string) error {
	if i := s.findTag(name); i >= 0 {
		m := tagRe.FindStringSubmatch(s.lines[i])
		s.lines[i] = m[1] + m[2] + value

		return nil
	}

	nameIdx := s.findTag("Name")
	if nameIdx < 0 {
		return fmt.Errorf("cannot add %s: spec has no Name tag", name)
	}

	s.insert(nameIdx+1, name+": "+value)

	return nil
}

// SetGlobal sets "%global name value", adding it at the top when absent
func (s *Spec) SetGlobal(name, value string) {
	re := regexp.MustCompile(`^%global\s+` + regexp.QuoteMeta(name) + `(\s|$)`)
	line := "%global " + name + " " + value

	for i, l := range s.lines {
		if re.MatchString(l) {
			s.lines[i] = line
			return
		}
	}

	s.insert(0, line)
}

// SetSetupDirname points every %setup and %autosetup at dir. It reports
// whether any such line was found.
func (s *Spec) SetSetupDirname(dir string) bool {
	found := false
	for i, line := range s.lines {
		if !setupRe.MatchString(line) {
			continue
		}

		found = true
		line = setupDirRe.ReplaceAllString(line, "")
		s.lines[i] = line + " -n " + dir
	}

	return found
}

// DeleteChangelog removes the %changelog section, which is always last
func (s *Spec) DeleteChangelog() {
	for i, line := range s.lines {
		if changelog.MatchString(line) {
			s.lines = s.lines[:i]
			return
		}
	}
}

// WipePatches removes Patch tags and %patch applications
func (s *Spec) WipePatches() {
	kept := s.lines[:0]
	for _, line := range s.lines {
		if patchTagRe.MatchString(line) || patchMacro.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	s.lines = kept
}

// PrependHeader adds the generated-file marker once
func (s *Spec) PrependHeader() {
	if len(s.lines) > 0 && s.lines[0] == Header {
		return
	}

	s.insert(0, Header)
}

func (s *Spec) insert(i int, line string) {
	s.lines = append(s.lines, "")
	copy(s.lines[i+1:], s.lines[i:])
	s.lines[i] = line
}
