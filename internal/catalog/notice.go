package catalog

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	noticeMarkdown = goldmark.New()
	noticePolicy   = newNoticePolicy()
)

func newNoticePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "strong", "em")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// RenderNotice converts the markdown notice into sanitized HTML.
func RenderNotice(markdown string) (string, error) {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := noticeMarkdown.Convert([]byte(trimmed), &buf); err != nil {
		return "", fmt.Errorf("catalog: render notice: %w", err)
	}
	return strings.TrimSpace(noticePolicy.Sanitize(buf.String())), nil
}
