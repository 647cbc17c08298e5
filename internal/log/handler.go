/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// multiHandler hands each record to every member that accepts its level.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m multiHandler) each(fn func(slog.Handler) slog.Handler) multiHandler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = fn(h)
	}
	return out
}

// boardHandler adds the board name found in the record's context.
type boardHandler struct{ slog.Handler }

func (b boardHandler) Handle(ctx context.Context, r slog.Record) error {
	if name, ok := BoardFrom(ctx); ok {
		r = r.Clone()
		r.AddAttrs(slog.String("board", name))
	}
	return b.Handler.Handle(ctx, r)
}

func (b boardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return boardHandler{b.Handler.WithAttrs(attrs)}
}

func (b boardHandler) WithGroup(name string) slog.Handler {
	return boardHandler{b.Handler.WithGroup(name)}
}

// prettyHandler writes one line per record:
//
//	2025-01-02T15:04:05Z INF message key=value group.key=value
type prettyHandler struct {
	level     slog.Leveler
	addSource bool
	mu        *sync.Mutex
	w         io.Writer
	preset    string // attrs from WithAttrs, already rendered
	prefix    string // open groups joined by "."
}

func newPrettyHandler(w io.Writer, level slog.Leveler, addSource bool) *prettyHandler {
	return &prettyHandler{level: level, addSource: addSource, mu: new(sync.Mutex), w: w}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.level != nil {
		floor = h.level.Level()
	}
	return level >= floor
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var sb strings.Builder
	sb.WriteString(ts.Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(shortLevel(r.Level))
	if r.Message != "" {
		sb.WriteByte(' ')
		sb.WriteString(r.Message)
	}
	sb.WriteString(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.prefix, a)
		return true
	})
	if h.addSource {
		if file, line, ok := callSite(r.PC); ok {
			sb.WriteString(" src=" + file + ":" + strconv.Itoa(line))
		}
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var sb strings.Builder
	sb.WriteString(h.preset)
	for _, a := range attrs {
		appendAttr(&sb, h.prefix, a)
	}
	c := *h
	c.preset = sb.String()
	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			appendAttr(sb, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(formatValue(v))
}

// callSite resolves the program counter stored in a record.
func callSite(pc uintptr) (string, int, bool) {
	if pc == 0 {
		return "", 0, false
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return "", 0, false
	}
	return f.File, f.Line, true
}

func shortLevel(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	}
	return l.String()
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); strings.ContainsAny(s, " \t\"=") {
			return strconv.Quote(s)
		}
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	}
	return v.String()
}
