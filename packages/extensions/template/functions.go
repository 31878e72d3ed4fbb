package template

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func evaluates a template function call.
type Func func(args []string) (string, error)

// Functions is a named set of template functions.
type Functions struct {
	funcs map[string]Func
	now   func() time.Time
}

// NewFunctions returns the built-in functions using now as the clock.
func NewFunctions(now func() time.Time) *Functions {
	if now == nil {
		now = time.Now
	}
	f := &Functions{funcs: make(map[string]Func), now: now}
	f.registerDefaults()
	return f
}

func (f *Functions) registerDefaults() {
	f.funcs["now"] = func(_ []string) (string, error) {
		return f.now().UTC().Format(time.RFC3339), nil
	}
	f.funcs["timestamp"] = func(_ []string) (string, error) {
		return strconv.FormatInt(f.now().Unix(), 10), nil
	}
	f.funcs["timestampMs"] = func(_ []string) (string, error) {
		return strconv.FormatInt(f.now().UnixMilli(), 10), nil
	}
	f.funcs["date"] = func(args []string) (string, error) {
		layout := "2006-01-02"
		if len(args) >= 1 {
			layout = args[0]
		}
		return f.now().UTC().Format(layout), nil
	}
	f.funcs["uuid"] = funcUUID
	f.funcs["random"] = funcRandom
	f.funcs["randomString"] = funcRandomString
	f.funcs["base64"] = funcBase64
	f.funcs["sha256"] = funcSHA256
	f.funcs["urlEncode"] = funcURLEncode
}

// Register adds or replaces a function.
func (f *Functions) Register(name string, fn Func) {
	f.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr such as `random(1, 10)`. ok is false when expr is not
// a call to a known function.
func (f *Functions) Call(expr string) (result string, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return "", false, nil
	}

	fn, found := f.funcs[matches[1]]
	if !found {
		return "", false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	result, err = fn(args)
	if err != nil {
		return "", true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return result, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcUUID(_ []string) (string, error) {
	return uuid.NewString(), nil
}

func funcRandom(args []string) (string, error) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return "", fmt.Errorf("min %q is not an integer", args[0])
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return "", fmt.Errorf("max %q is not an integer", args[1])
		}
	}
	if hi < lo {
		return "", fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return strconv.Itoa(rand.Intn(hi-lo+1) + lo), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, error) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return "", fmt.Errorf("length %q is not a non-negative integer", args[0])
		}
		length = v
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(result), nil
}

func funcBase64(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcSHA256(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(args []string) (string, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}
