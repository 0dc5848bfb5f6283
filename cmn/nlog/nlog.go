// Package nlog is the receiver's logger: buffered, timestamped, severity-gated
// writes to stderr and/or a rolling log file, tuned for a hot path that logs
// rarely (dropped heaps, source errors) but must never block packet ingest.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaoguangleo/spead2/cmn/mono"
)

const (
	fixedSize   = 64 * 1024
	extraSize   = 32 * 1024 // via mem pool
	maxLineSize = 2 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

// fixed is a fixed-capacity byte buffer: woff is the write offset, never
// reallocated once made -- a full buffer is swapped out (see (*nlogT).get)
// rather than grown.
type fixed struct {
	buf  []byte
	woff int
}

var sevText = [...]string{"INFO", "WARN", "ERROR"}

type (
	nlogT struct {
		file           *os.File
		pw, buf1, buf2 *fixed
		line           fixed
		toFlush        []*fixed
		last           atomic.Int64
		written        atomic.Int64
		sev            severity
		oob            atomic.Bool
		erred          atomic.Bool
		mw             sync.Mutex
	}
)

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	title        string
	aisrole      string

	host string
	pid  = os.Getpid()

	nlogs         [sevErr + 1]*nlogT // indexed by severity; only sevInfo and sevErr are populated
	onceInitFiles sync.Once

	pool sync.Pool

	// MaxSize is the per-file rotation threshold, in bytes.
	MaxSize int64 = 4 * 1024 * 1024

	redactFnames = map[string]struct{}{}
)

func init() {
	host, _ = os.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	nlogs[sevInfo] = newNlog(sevInfo)
	nlogs[sevErr] = newNlog(sevErr)
}

func initFiles() {
	if toStderr || logDir == "" {
		toStderr = true
		return
	}
	now := time.Now()
	for _, sev := range []severity{sevInfo, sevErr} {
		nl := nlogs[sev]
		f, _, err := fcreate(sevText[sev], now)
		if err != nil {
			toStderr = true
			return
		}
		nl.file = f
	}
}

// main function
func log(sev severity, depth int, format string, args ...any) {
	onceInitFiles.Do(initFiles)

	switch {
	case !flag.Parsed():
		os.Stderr.WriteString("Error: logging before flag.Parse: ")
		fallthrough
	case toStderr:
		fb := alloc()
		sprintf(sev, depth, format, fb, args...)
		fb.flush(os.Stderr)
		free(fb)
	case alsoToStderr || sev >= sevWarn:
		fb := alloc()
		sprintf(sev, depth, format, fb, args...)
		if alsoToStderr || sev >= sevErr {
			fb.flush(os.Stderr)
		}
		if sev >= sevWarn {
			nl := nlogs[sevErr]
			nl.mw.Lock()
			nl.write(fb)
			nl.mw.Unlock()
		}
		nl := nlogs[sevInfo]
		nl.mw.Lock()
		nl.write(fb)
		nl.mw.Unlock()
		free(fb)
	default:
		// fast path
		nlogs[sevInfo].printf(sev, depth, format, args...)
	}
}

//
// nlogT
//

func newNlog(sev severity) *nlogT {
	nl := &nlogT{
		sev:     sev,
		buf1:    &fixed{buf: make([]byte, fixedSize)},
		buf2:    &fixed{buf: make([]byte, fixedSize)},
		line:    fixed{buf: make([]byte, maxLineSize)},
		toFlush: make([]*fixed, 0, 4),
	}
	nl.pw = nl.buf1
	return nl
}

func (nl *nlogT) since(now int64) time.Duration { return time.Duration(now - nl.last.Load()) }

func (nl *nlogT) printf(sev severity, depth int, format string, args ...any) {
	nl.mw.Lock()
	nl.line.reset()
	sprintf(sev, depth+1, format, &nl.line, args...)
	nl.write(&nl.line)
	nl.mw.Unlock()
}

// under mw-lock
func (nl *nlogT) write(line *fixed) {
	buf := line.buf[:line.woff]
	nl.pw.Write(buf)

	if nl.pw.avail() > maxLineSize {
		return
	}

	nl.toFlush = append(nl.toFlush, nl.pw)
	nl.oob.Store(true)
	nl.get()
}

func (nl *nlogT) get() {
	prev := nl.pw
	assert(prev == nl.toFlush[len(nl.toFlush)-1])
	switch {
	case prev == nl.buf1:
		if nl.buf2 != nil {
			nl.pw = nl.buf2
		} else {
			nl.pw = alloc()
		}
		nl.buf1 = nil
	case prev == nl.buf2:
		if nl.buf1 != nil {
			nl.pw = nl.buf1
		} else {
			nl.pw = alloc()
		}
		nl.buf2 = nil
	default: // prev was alloc-ed
		switch {
		case nl.buf1 != nil:
			nl.pw = nl.buf1
		case nl.buf2 != nil:
			nl.pw = nl.buf2
		default:
			nl.pw = alloc()
		}
	}
}

func (nl *nlogT) put(pw *fixed /* to reuse */) {
	nl.mw.Lock()
	switch {
	case nl.buf1 == nil:
		nl.buf1 = pw
	case nl.buf2 == nil:
		nl.buf2 = pw
	default:
		assert(nl.buf1 == pw || nl.buf2 == pw) // via Flush(true)
	}
	nl.mw.Unlock()
}

func (nl *nlogT) flush() {
	for {
		nl.mw.Lock()
		if len(nl.toFlush) == 0 {
			nl.oob.Store(false)
			nl.mw.Unlock()
			break
		}
		pw := nl.toFlush[0]
		copy(nl.toFlush, nl.toFlush[1:])
		nl.toFlush = nl.toFlush[:len(nl.toFlush)-1]
		nl.mw.Unlock()

		nl.do(pw)
	}
}

func (nl *nlogT) do(pw *fixed) {
	// write
	if nl.erred.Load() || nl.file == nil {
		os.Stderr.Write(pw.buf[:pw.woff])
	} else {
		n, err := pw.flush(nl.file)
		if err != nil {
			nl.erred.Store(true)
		}
		nl.written.Add(int64(n))
		nl.last.Store(mono.NanoTime())
	}

	// recycle buf
	pw.reset()
	if pw.size() == extraSize {
		free(pw)
	} else {
		assert(pw.size() == fixedSize)
		nl.put(pw)
	}

	// rotate
	if nl.file != nil && nl.written.Load() >= MaxSize {
		err := nl.file.Close()
		assert(err == nil)
		nl.rotate(time.Now())
	}
}

func (nl *nlogT) rotate(now time.Time) (err error) {
	var (
		s    = fmt.Sprintf("host %s, %s for %s/%s\n", host, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		snow = now.Format("2006/01/02 15:04:05")
	)
	if nl.file, _, err = fcreate(sevText[nl.sev], now); err != nil {
		nl.erred.Store(true)
		return
	}
	nl.written.Store(0)
	nl.erred.Store(false)
	if title == "" {
		_, err = nl.file.WriteString("Started up at " + snow + ", " + s)
	} else {
		nl.file.WriteString("Rotated at " + snow + ", " + s)
		_, err = nl.file.WriteString(title)
	}
	return
}

//
// fixed
//

func (f *fixed) size() int  { return len(f.buf) }
func (f *fixed) avail() int { return len(f.buf) - f.woff }
func (f *fixed) length() int { return f.woff }
func (f *fixed) reset()     { f.woff = 0 }

func (f *fixed) Write(p []byte) (int, error) {
	n := copy(f.buf[f.woff:], p)
	f.woff += n
	return n, nil
}

func (f *fixed) writeByte(b byte) { f.buf[f.woff] = b; f.woff++ }

func (f *fixed) writeString(s string) {
	n := copy(f.buf[f.woff:], s)
	f.woff += n
}

func (f *fixed) eol() {
	if f.woff == 0 || f.buf[f.woff-1] != '\n' {
		f.writeByte('\n')
	}
}

func (f *fixed) flush(w *os.File) (int, error) {
	if f.woff == 0 {
		return 0, nil
	}
	n, err := w.Write(f.buf[:f.woff])
	return n, err
}

//
// utils
//

func sname() string {
	if title != "" {
		return title
	}
	if aisrole != "" {
		return "spead2." + aisrole
	}
	return "spead2"
}

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s,
		host,
		tag,
		t.Month(),
		t.Day(),
		t.Hour(),
		t.Minute(),
		t.Second(),
		pid)
	return name, s + "." + tag
}

func fcreate(tag string, t time.Time) (*os.File, string, error) {
	name, link := logfname(tag, t)
	full := filepath.Join(logDir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", err
	}
	linkPath := filepath.Join(logDir, link)
	os.Remove(linkPath)
	os.Symlink(name, linkPath)
	return f, full, nil
}

func formatHdr(s severity, depth int, fb *fixed) {
	const char = "IWE"
	_, fn, ln, ok := runtime.Caller(3 + depth)
	if !ok {
		return
	}
	idx := strings.LastIndexByte(fn, filepath.Separator)
	if idx > 0 {
		fn = fn[idx+1:]
	}
	if l := len(fn); l > 3 {
		fn = fn[:l-3]
	}
	fb.writeByte(char[s])
	fb.writeByte(' ')
	now := time.Now()
	fb.writeString(now.Format("15:04:05.000000"))

	fb.writeByte(' ')
	if _, redact := redactFnames[fn]; redact {
		return
	}
	fb.writeString(fn)
	fb.writeByte(':')
	fb.writeString(strconv.Itoa(ln))
	fb.writeByte(' ')
}

func sprintf(sev severity, depth int, format string, fb *fixed, args ...any) {
	formatHdr(sev, depth+1, fb)
	if format == "" {
		fmt.Fprintln(fb, args...)
	} else {
		fmt.Fprintf(fb, format, args...)
		fb.eol()
	}
}

// mem pool of additional buffers
// usage:
// - none of the "fixed" ones available
// - alsoToStderr

func alloc() (fb *fixed) {
	if v := pool.Get(); v != nil {
		fb = v.(*fixed)
		fb.reset()
	} else {
		fb = &fixed{buf: make([]byte, extraSize)}
	}
	return
}

func free(fb *fixed) {
	assert(fb.size() == extraSize)
	pool.Put(fb)
}

func assert(cond bool) {
	if !cond {
		panic("nlog: assertion failed")
	}
}
