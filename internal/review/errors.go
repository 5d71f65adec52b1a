package review

import "errors"

var (
	// ErrUnsupportedLanguage is returned for recent-edit languages other
	// than SupportedLanguages.
	ErrUnsupportedLanguage = errors.New("unsupported language code")
	// ErrRecentChanges wraps failures fetching recent changes.
	ErrRecentChanges = errors.New("fetch recent changes")
	// ErrRefresh wraps failures fetching pending pages from the source.
	ErrRefresh = errors.New("refresh pending pages")
	// ErrInvalidConfiguration is returned for malformed configuration
	// payloads.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
