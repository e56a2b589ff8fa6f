// Package validation checks user-supplied content before it is written.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxCommentLen     = 500
	MinTitleLen       = 3
	MaxTitleLen       = 100
	MaxDescriptionLen = 300
	MinUserNameLen    = 3
	MaxUserNameLen    = 30
)

var userNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var reservedUserNames = map[string]struct{}{
	"admin":         {},
	"api":           {},
	"health":        {},
	"metrics":       {},
	"notifications": {},
	"posts":         {},
	"users":         {},
	"follows":       {},
	"comments":      {},
	"replies":       {},
}

var videoSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"gs":    {},
}

func lengthBetween(field, s string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < min {
		if min == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if n > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}

// ValidateCommentText applies to both comments and replies.
func ValidateCommentText(text string) error {
	return lengthBetween("text", text, 1, MaxCommentLen)
}

func ValidatePostTitle(title string) error {
	return lengthBetween("title", title, MinTitleLen, MaxTitleLen)
}

func ValidatePostDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateVideoURL requires an absolute http(s) or gs:// URL with a host.
func ValidateVideoURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("video_url is required")
	}
	return validateAssetURL("video_url", raw)
}

// ValidateOptionalURL accepts an empty value or an asset URL.
func ValidateOptionalURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return validateAssetURL(field, raw)
}

func validateAssetURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", field)
	}
	if _, ok := videoSchemes[strings.ToLower(u.Scheme)]; !ok {
		return fmt.Errorf("%s must use http, https or gs", field)
	}
	return nil
}

// ValidateUserName validates user name format and reserved names.
func ValidateUserName(name string) error {
	if err := lengthBetween("name", name, MinUserNameLen, MaxUserNameLen); err != nil {
		return err
	}
	if !userNameRegex.MatchString(name) {
		return fmt.Errorf("name may contain only letters, numbers, dots, hyphens and underscores")
	}
	if _, exists := reservedUserNames[strings.ToLower(name)]; exists {
		return fmt.Errorf("name is reserved")
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email is invalid")
	}
	return nil
}
