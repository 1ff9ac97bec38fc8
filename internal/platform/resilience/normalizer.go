package resilience

import (
	"context"
	"errors"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"strings"
	"syscall"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// DetailCause is the detail key holding the raw failure text. The HTTP
// boundary removes it outside debug mode.
const DetailCause = "cause"

// StatusCoder is implemented by raw failures that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// ClassificationTexter is implemented by raw failures whose Error text mixes
// the upstream's message with identifiers such as vendor codes or request
// IDs. Pattern rules match ClassificationText instead of Error.
type ClassificationTexter interface {
	ClassificationText() string
}

// SentinelRule classifies any error matching Err via errors.Is.
type SentinelRule struct {
	Err  error
	Kind domain.Kind
}

// PatternRule classifies any error whose lower-cased text contains Pattern.
// A pattern that begins or ends with a digit only matches where it is not
// joined to another letter or digit, so "404" does not match "20404".
type PatternRule struct {
	Pattern string
	Kind    domain.Kind
}

// ClassificationTable maps raw failures onto kinds. Rules are consulted in
// the order: sentinels, transport signals, status codes, patterns. Anything
// left over is Internal.
type ClassificationTable struct {
	Sentinels []SentinelRule
	Statuses  map[int]domain.Kind

	// ServerErrorKind classifies 5xx statuses missing from Statuses.
	ServerErrorKind domain.Kind

	Patterns []PatternRule
}

// DefaultClassificationTable returns the built-in table. Callers may prepend
// rules before passing it to NewNormalizer.
func DefaultClassificationTable() ClassificationTable {
	return ClassificationTable{
		Sentinels: []SentinelRule{
			{Err: domain.ErrUnavailable, Kind: domain.KindNetwork},
		},
		Statuses: map[int]domain.Kind{
			http.StatusBadRequest:          domain.KindValidation,
			http.StatusUnauthorized:        domain.KindAuthentication,
			http.StatusForbidden:           domain.KindAuthentication,
			http.StatusNotFound:            domain.KindNotFound,
			http.StatusRequestTimeout:      domain.KindNetwork,
			http.StatusConflict:            domain.KindValidation,
			http.StatusUnprocessableEntity: domain.KindValidation,
			http.StatusTooManyRequests:     domain.KindNetwork,
			http.StatusBadGateway:          domain.KindNetwork,
			http.StatusServiceUnavailable:  domain.KindNetwork,
			http.StatusGatewayTimeout:      domain.KindNetwork,
		},
		ServerErrorKind: domain.KindInternal,
		Patterns: []PatternRule{
			{Pattern: "unauthorized", Kind: domain.KindAuthentication},
			{Pattern: "401", Kind: domain.KindAuthentication},
			{Pattern: "forbidden", Kind: domain.KindAuthentication},
			{Pattern: "permission", Kind: domain.KindAuthentication},
			{Pattern: "auth", Kind: domain.KindAuthentication},
			{Pattern: "not found", Kind: domain.KindNotFound},
			{Pattern: "does not exist", Kind: domain.KindNotFound},
			{Pattern: "404", Kind: domain.KindNotFound},
			{Pattern: "validation", Kind: domain.KindValidation},
			{Pattern: "malformed request", Kind: domain.KindValidation},
			{Pattern: "invalid parameter", Kind: domain.KindValidation},
			{Pattern: "invalid argument", Kind: domain.KindValidation},
			{Pattern: "network", Kind: domain.KindNetwork},
			{Pattern: "connection", Kind: domain.KindNetwork},
			{Pattern: "timeout", Kind: domain.KindNetwork},
			{Pattern: "timed out", Kind: domain.KindNetwork},
			{Pattern: "reset", Kind: domain.KindNetwork},
			{Pattern: "refused", Kind: domain.KindNetwork},
			{Pattern: "unavailable", Kind: domain.KindNetwork},
			{Pattern: "eof", Kind: domain.KindNetwork},
		},
	}
}

// Normalizer converts raw failures into *domain.Error values. It is safe for
// concurrent use; its table is copied at construction and never modified.
type Normalizer struct {
	sentinels       []SentinelRule
	statuses        map[int]domain.Kind
	serverErrorKind domain.Kind
	patterns        []PatternRule
	messages        map[domain.Kind]string
}

// defaultMessages are used when the caller does not supply its own.
var defaultMessages = map[domain.Kind]string{
	domain.KindAuthentication: "Authentication failed",
	domain.KindNotFound:       "Resource not found",
	domain.KindValidation:     "Invalid request",
	domain.KindNetwork:        "Network error while calling upstream",
	domain.KindInternal:       "Upstream call failed",
}

// NewNormalizer builds a normalizer from table.
func NewNormalizer(table ClassificationTable) *Normalizer {
	patterns := make([]PatternRule, 0, len(table.Patterns))
	for _, p := range table.Patterns {
		if p.Pattern == "" {
			continue
		}

		patterns = append(patterns, PatternRule{Pattern: strings.ToLower(p.Pattern), Kind: p.Kind})
	}

	return &Normalizer{
		sentinels:       slices.Clone(table.Sentinels),
		statuses:        maps.Clone(table.Statuses),
		serverErrorKind: table.ServerErrorKind,
		patterns:        patterns,
		messages:        defaultMessages,
	}
}

// Classify returns the kind err maps to. It never fails: unrecognized
// errors are Internal.
func (n *Normalizer) Classify(err error) domain.Kind {
	if kind, ok := domain.KindOf(err); ok {
		return kind
	}

	for _, rule := range n.sentinels {
		if rule.Err != nil && errors.Is(err, rule.Err) {
			return rule.Kind
		}
	}

	if isTransportFailure(err) {
		return domain.KindNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if kind, ok := n.classifyStatus(sc.HTTPStatus()); ok {
			return kind
		}
	}

	text := strings.ToLower(classificationText(err))
	for _, rule := range n.patterns {
		if containsPattern(text, rule.Pattern) {
			return rule.Kind
		}
	}

	return domain.KindInternal
}

func classificationText(err error) string {
	var ct ClassificationTexter
	if errors.As(err, &ct) {
		return ct.ClassificationText()
	}

	return err.Error()
}

// containsPattern reports whether pattern occurs in text, honoring the
// digit boundary rule of PatternRule.
func containsPattern(text, pattern string) bool {
	checkStart := startsWithDigit(pattern)
	checkEnd := endsWithDigit(pattern)

	for offset := 0; offset <= len(text)-len(pattern); {
		i := strings.Index(text[offset:], pattern)
		if i < 0 {
			return false
		}

		start := offset + i
		end := start + len(pattern)

		if (!checkStart || start == 0 || !isAlnum(text[start-1])) &&
			(!checkEnd || end == len(text) || !isAlnum(text[end])) {
			return true
		}

		offset = start + 1
	}

	return false
}

func startsWithDigit(s string) bool { return s != "" && isDigit(s[0]) }

func endsWithDigit(s string) bool { return s != "" && isDigit(s[len(s)-1]) }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlnum(b byte) bool { return isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func (n *Normalizer) classifyStatus(status int) (domain.Kind, bool) {
	if kind, ok := n.statuses[status]; ok {
		return kind, true
	}

	if status >= http.StatusInternalServerError {
		return n.serverErrorKind, true
	}

	return domain.KindInternal, false
}

// Normalize maps err to exactly one normalized error. A nil err yields nil.
// Errors that are already normalized are returned unchanged.
func (n *Normalizer) Normalize(err error) *domain.Error {
	return n.NormalizeCall(err, Call{})
}

// NormalizeCall is Normalize with the call's name, detail and message
// overrides attached.
func (n *Normalizer) NormalizeCall(err error, call Call) *domain.Error {
	if err == nil {
		return nil
	}

	if de, ok := domain.AsError(err); ok {
		return mergeDetail(de, call)
	}

	kind := n.Classify(err)

	return domain.Wrap(kind, call.message(kind, n.messages), err, n.detail(err, call))
}

// normalizeTimeout classifies an attempt that exceeded its deadline. It is
// always Network regardless of what the operation returned.
func (n *Normalizer) normalizeTimeout(err error, call Call) *domain.Error {
	return domain.Wrap(domain.KindNetwork, call.message(domain.KindNetwork, n.messages), err, n.detail(err, call))
}

func (n *Normalizer) detail(err error, call Call) map[string]any {
	detail := maps.Clone(call.Detail)
	if detail == nil {
		detail = make(map[string]any, 2)
	}

	if call.Name != "" {
		detail["operation"] = call.Name
	}

	detail[DetailCause] = err.Error()

	return detail
}

// mergeDetail adds the call's detail to an already normalized error without
// overwriting keys it set itself.
func mergeDetail(de *domain.Error, call Call) *domain.Error {
	existing := de.Detail()
	out := de

	if _, ok := existing["operation"]; !ok && call.Name != "" {
		out = out.WithDetail("operation", call.Name)
	}

	for k, v := range call.Detail {
		if _, ok := existing[k]; ok {
			continue
		}

		out = out.WithDetail(k, v)
	}

	return out
}

// isTransportFailure recognizes timeouts and socket-level errors by type.
func isTransportFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
