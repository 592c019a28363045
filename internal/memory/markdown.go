// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memory

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseMarkdown parses a markdown document with YAML frontmatter back
// into a Memory. The body becomes the memory text.
func ParseMarkdown(content string) (*Memory, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("failed to split frontmatter: %w", err)
	}

	var mem Memory
	if frontmatter != "" {
		if err := yaml.Unmarshal([]byte(frontmatter), &mem); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	mem.Text = strings.TrimSpace(body)

	return &mem, nil
}

// ToMarkdown renders the memory as markdown with YAML frontmatter.
// This is the archive format for forgotten memories.
func (m *Memory) ToMarkdown() (string, error) {
	var buf bytes.Buffer

	buf.WriteString("---\n")

	frontmatterData, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	buf.Write(frontmatterData)
	buf.WriteString("---\n\n")

	buf.WriteString(m.Text)
	buf.WriteString("\n")

	return buf.String(), nil
}

// splitFrontmatter splits markdown content into frontmatter and body
func splitFrontmatter(content string) (string, string, error) {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "---") {
		// No frontmatter
		return "", content, nil
	}

	lines := strings.Split(content, "\n")
	if len(lines) < 3 {
		return "", content, nil
	}

	closingIndex := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closingIndex = i
			break
		}
	}

	if closingIndex == -1 {
		return "", content, fmt.Errorf("frontmatter not properly closed")
	}

	frontmatter := strings.Join(lines[1:closingIndex], "\n")

	body := ""
	if closingIndex+1 < len(lines) {
		body = strings.Join(lines[closingIndex+1:], "\n")
	}

	return frontmatter, body, nil
}
