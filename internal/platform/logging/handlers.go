package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// Tee sends each record to every handler in it that accepts the record's
// level. The logger uses it to mirror the console onto the rotated file.
type Tee []slog.Handler

// Enabled reports whether any handler accepts level.
func (t Tee) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(t, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle writes r to each accepting handler. A failing sink does not stop
// the rest; their errors come back joined.
func (t Tee) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	errs := make([]error, 0, len(t))

	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (t Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Tee, 0, len(t))
	for _, h := range t {
		out = append(out, h.WithAttrs(attrs))
	}

	return out
}

func (t Tee) WithGroup(name string) slog.Handler {
	out := make(Tee, 0, len(t))
	for _, h := range t {
		out = append(out, h.WithGroup(name))
	}

	return out
}

// replaceAttrHandler applies a ReplaceAttr function in front of a handler
// that does not support one.
type replaceAttrHandler struct {
	next    slog.Handler
	replace func([]string, slog.Attr) slog.Attr
	groups  []string
}

func (h *replaceAttrHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *replaceAttrHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.replace(h.groups, a))
		return true
	})

	return h.next.Handle(ctx, out)
}

func (h *replaceAttrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	replaced := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		replaced = append(replaced, h.replace(h.groups, a))
	}

	return &replaceAttrHandler{next: h.next.WithAttrs(replaced), replace: h.replace, groups: h.groups}
}

func (h *replaceAttrHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string(nil), h.groups...), name)

	return &replaceAttrHandler{next: h.next.WithGroup(name), replace: h.replace, groups: groups}
}
