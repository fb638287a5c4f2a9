package providers

// EscapeSearchTerm exposes the SOSL escaping for tests
var EscapeSearchTerm = escapeSearchTerm
